// Package updater runs the end-to-end job: load the candidate list, skip it
// when unchanged, evaluate the candidates, pick one and push it to the
// management channels.
package updater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"proxyscout/internal/channel"
	"proxyscout/internal/config"
	"proxyscout/internal/latency"
	"proxyscout/internal/metrics"
	"proxyscout/internal/scoring"
	"proxyscout/internal/source"
	"proxyscout/internal/storage"
	"proxyscout/internal/storage/models"
	pkgerrors "proxyscout/pkg/errors"
)

// Loader produces the candidate list.
type Loader interface {
	Load(ctx context.Context) (*source.List, error)
}

// Pusher publishes the selected proxy.
type Pusher interface {
	UpdateProxy(ctx context.Context, channelIDs []int, proxyURL string) error
}

// Evaluator tests a batch of candidates.
type Evaluator interface {
	TestBatch(ctx context.Context, candidates []models.Candidate, progress latency.ProgressFunc) *latency.BatchResult
}

// RemoteLoader loads the list from the configured URL.
type RemoteLoader struct {
	Fetcher *source.Fetcher
	URL     string
	Region  string
}

func (l RemoteLoader) Load(ctx context.Context) (*source.List, error) {
	return source.Load(ctx, l.Fetcher, l.URL, l.Region)
}

// NewRemoteLoader builds a RemoteLoader from the source settings.
func NewRemoteLoader(cfg *config.Config, logger *zap.Logger) RemoteLoader {
	defaults := source.DefaultFetcherConfig()
	return RemoteLoader{
		Fetcher: source.NewFetcher(source.FetcherConfig{
			UserAgent:  defaults.UserAgent,
			Timeout:    cfg.Source.Timeout,
			MaxRetries: cfg.Source.MaxRetries,
			RetryDelay: defaults.RetryDelay,
			Logger:     logger,
		}),
		URL:    cfg.Source.URL,
		Region: cfg.Source.Region,
	}
}

// FileLoader loads the list from a local markdown file.
type FileLoader struct {
	Path   string
	Region string
}

func (l FileLoader) Load(ctx context.Context) (*source.List, error) {
	return source.LoadFile(l.Path, l.Region)
}

// StaticLoader serves a fixed candidate set.
type StaticLoader struct {
	Candidates []models.Candidate
}

func (l StaticLoader) Load(ctx context.Context) (*source.List, error) {
	if len(l.Candidates) == 0 {
		return nil, pkgerrors.ErrNoCandidates
	}
	return &source.List{URL: "static", Candidates: l.Candidates}, nil
}

// Deps are the collaborators of an Updater.
type Deps struct {
	Config    *config.Config
	Storage   storage.Storage
	Loader    Loader
	Evaluator Evaluator
	Pusher    Pusher
	Metrics   *metrics.Recorder
	Logger    *zap.Logger
}

// Updater runs the update job.
type Updater struct {
	cfg     *config.Config
	store   storage.Storage
	loader  Loader
	tester  Evaluator
	pusher  Pusher
	policy  scoring.Policy
	metrics *metrics.Recorder
	logger  *zap.Logger
}

// New creates an Updater. Missing collaborators are built from the config.
func New(d Deps) (*Updater, error) {
	if d.Config == nil {
		return nil, fmt.Errorf("updater: config is required")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Loader == nil {
		d.Loader = NewRemoteLoader(d.Config, d.Logger)
	}
	if d.Evaluator == nil {
		tc, err := d.Config.Engine.TesterConfig(nil, d.Metrics, d.Logger)
		if err != nil {
			return nil, err
		}
		d.Evaluator = latency.NewTester(tc)
	}
	if d.Pusher == nil {
		d.Pusher = channel.NewClient(channel.Config{
			BaseURL: d.Config.Channel.BaseURL,
			AdminID: d.Config.Channel.AdminID,
			Token:   d.Config.Channel.Token,
			Timeout: d.Config.Channel.Timeout,
			Logger:  d.Logger,
		})
	}
	return &Updater{
		cfg:     d.Config,
		store:   d.Storage,
		loader:  d.Loader,
		tester:  d.Evaluator,
		pusher:  d.Pusher,
		policy:  d.Config.Engine.Policy(d.Logger),
		metrics: d.Metrics,
		logger:  d.Logger,
	}, nil
}

// Options controls one run.
type Options struct {
	Force    bool // evaluate even when the list is unchanged
	DryRun   bool // do not push, still record the cache
	Progress latency.ProgressFunc
}

// Result reports what a run did.
type Result struct {
	Skipped    bool
	Hash       string
	Candidates int
	Batch      *latency.BatchResult
	Selected   *scoring.EvaluatedCandidate // nil when nothing worked
	Degraded   bool                        // selected without meeting the thresholds
	ProxyURL   string
	Pushed     bool
	StartedAt  time.Time
	Duration   time.Duration
}

// Run executes the job once. A run that finds no working candidate is not an
// error: Result.Selected is nil and nothing is pushed or cached.
func (u *Updater) Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{StartedAt: time.Now()}
	defer func() { res.Duration = time.Since(res.StartedAt) }()

	u.logger.Info("update run started", zap.Bool("force", opts.Force), zap.Bool("dry_run", opts.DryRun))

	list, err := u.loader.Load(ctx)
	if err != nil {
		return res, err
	}
	res.Hash = list.Hash
	res.Candidates = len(list.Candidates)
	u.logger.Info("candidate list loaded", zap.String("url", list.URL), zap.Int("candidates", res.Candidates))

	if !opts.Force && list.Hash != "" && u.store != nil {
		cached, err := u.store.GetCacheRecord(ctx)
		if err != nil {
			return res, err
		}
		if cached != nil && cached.ContentHash == list.Hash {
			u.logger.Info("candidate list unchanged, skipping run",
				zap.String("hash", list.Hash),
				zap.String("selected", cached.SelectedAddress),
			)
			res.Skipped = true
			return res, nil
		}
	}

	res.Batch = u.tester.TestBatch(ctx, list.Candidates, opts.Progress)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	res.Selected = u.policy.Select(res.Batch.Results)
	switch {
	case res.Selected == nil:
		u.metrics.ObserveSelection(metrics.SelectionNone, 0)
		u.logger.Warn("no working candidate, nothing pushed", zap.Int("tested", res.Batch.Tested))
		return res, nil
	case u.policy.Qualifies(res.Selected):
		u.metrics.ObserveSelection(metrics.SelectionQualified, res.Selected.CompositeScore)
	default:
		res.Degraded = true
		u.metrics.ObserveSelection(metrics.SelectionDegraded, res.Selected.CompositeScore)
	}

	res.ProxyURL, err = channel.ProxyURL(res.Selected.Candidate, u.cfg.Engine.ProxyPassword)
	if err != nil {
		return res, err
	}

	if !opts.DryRun {
		if err := u.cfg.ValidateChannel(); err != nil {
			return res, err
		}
		if err := u.pusher.UpdateProxy(ctx, u.cfg.Channel.ChannelIDs, res.ProxyURL); err != nil {
			return res, err
		}
		res.Pushed = true
	}

	if err := u.saveCache(ctx, list.Hash, res.Selected); err != nil {
		return res, err
	}

	u.logger.Info("update run finished",
		zap.String("selected", res.Selected.Candidate.Address),
		zap.Float64("composite", res.Selected.CompositeScore),
		zap.Bool("degraded", res.Degraded),
		zap.Bool("pushed", res.Pushed),
	)
	return res, nil
}

func (u *Updater) saveCache(ctx context.Context, hash string, selected *scoring.EvaluatedCandidate) error {
	if u.store == nil || hash == "" {
		return nil
	}
	tx, err := u.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	record := &models.CacheRecord{
		ContentHash:        hash,
		SelectedAddress:    selected.Candidate.Address,
		SelectedCredential: selected.Candidate.Credential,
		CompositeScore:     selected.CompositeScore,
		UpdatedAt:          time.Now().UTC(),
	}
	if err := tx.SaveCacheRecord(ctx, record); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}
