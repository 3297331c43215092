package latency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"proxyscout/internal/metrics"
	"proxyscout/internal/scoring"
	"proxyscout/internal/stats"
	"proxyscout/internal/storage/models"
	pkgerrors "proxyscout/pkg/errors"
)

// State is the lifecycle stage of one candidate task.
type State string

const (
	StatePending          State = "pending"
	StateSampling         State = "sampling"
	StateFallbackSampling State = "fallback_sampling"
	StateEvaluated        State = "evaluated"
	StateDone             State = "done"
)

// Progress describes a state change of one candidate task.
type Progress struct {
	Index     int
	Candidate models.Candidate
	State     State
	Result    *scoring.EvaluatedCandidate // set once evaluated
	Completed int                         // tasks done so far, set on StateDone
	Total     int
}

// ProgressFunc is called on every state change during batch testing. It is
// called from worker goroutines and must be safe for concurrent use.
type ProgressFunc func(p Progress)

// BatchResult holds the outcome of testing multiple candidates.
type BatchResult struct {
	Results   []*scoring.EvaluatedCandidate // ranked
	Tested    int
	Working   int
	Failed    int
	Fallbacks int
	Duration  time.Duration
}

// TesterConfig holds configuration for the Tester.
type TesterConfig struct {
	Workers            int64
	Timeout            time.Duration
	SamplesPerEndpoint int
	Endpoints          []string
	FallbackEndpoints  []string
	FallbackSamples    int
	SampleDelay        time.Duration
	MaxCandidates      int           // 0 tests every candidate
	BatchTimeout       time.Duration // 0 disables the batch deadline
	Thresholds         stats.Thresholds

	Prober    Prober
	Evaluator *scoring.Evaluator
	Metrics   *metrics.Recorder
	Logger    *zap.Logger
}

// Tester orchestrates candidate evaluation.
type Tester struct {
	config TesterConfig
}

// NewTester creates a new Tester.
func NewTester(cfg TesterConfig) *Tester {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.SamplesPerEndpoint <= 0 {
		cfg.SamplesPerEndpoint = 3
	}
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints, _ = Endpoints(CategoryStandard, nil)
	}
	if len(cfg.FallbackEndpoints) == 0 {
		cfg.FallbackEndpoints = DefaultFallbackEndpoints
	}
	if cfg.FallbackSamples <= 0 {
		cfg.FallbackSamples = 3
	}
	if cfg.SampleDelay < 0 {
		cfg.SampleDelay = 0
	}
	if cfg.Thresholds == (stats.Thresholds{}) {
		cfg.Thresholds = stats.DefaultThresholds()
		cfg.Thresholds.TimeoutThresholdMS = float64(cfg.Timeout.Milliseconds())
	}
	if cfg.Thresholds.TimeoutThresholdMS <= 0 {
		cfg.Thresholds.TimeoutThresholdMS = float64(cfg.Timeout.Milliseconds())
	}
	if cfg.Prober == nil {
		cfg.Prober = NewHTTPProber(cfg.Timeout, DefaultProxyPassword)
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator, _ = scoring.NewEvaluator(scoring.DefaultWeights())
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Tester{config: cfg}
}

// TestSingle evaluates a single candidate.
func (t *Tester) TestSingle(ctx context.Context, candidate models.Candidate) *scoring.EvaluatedCandidate {
	return t.run(ctx, 0, 1, candidate, nil)
}

// TestBatch evaluates candidates concurrently on a bounded worker pool and
// returns them ranked. Only the first MaxCandidates candidates are tested.
func (t *Tester) TestBatch(ctx context.Context, candidates []models.Candidate, progress ProgressFunc) *BatchResult {
	startTime := time.Now()

	if max := t.config.MaxCandidates; max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}
	if t.config.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.BatchTimeout)
		defer cancel()
	}

	total := len(candidates)
	results := make([]*scoring.EvaluatedCandidate, total)
	var mu sync.Mutex
	var completed int

	done := func(idx int, cand models.Candidate, rec *scoring.EvaluatedCandidate) {
		mu.Lock()
		results[idx] = rec
		completed++
		current := completed
		mu.Unlock()

		if progress != nil {
			progress(Progress{Index: idx, Candidate: cand, State: StateDone, Result: rec, Completed: current, Total: total})
		}
	}

	if progress != nil {
		for i, cand := range candidates {
			progress(Progress{Index: i, Candidate: cand, State: StatePending, Total: total})
		}
	}

	sem := semaphore.NewWeighted(t.config.Workers)
	var wg sync.WaitGroup

	for i, cand := range candidates {
		// Acquire before spawning so at most Workers tasks exist at once.
		// Acquire may succeed on a done context, so check it first.
		err := ctx.Err()
		if err == nil {
			err = sem.Acquire(ctx, 1)
		}
		if err != nil {
			t.config.Logger.Warn("candidate skipped, batch cancelled",
				zap.String("address", cand.Address), zap.Error(err))
			done(i, cand, scoring.Failed(cand, fmt.Errorf("%w: %v", pkgerrors.ErrNotTested, err)))
			continue
		}
		wg.Add(1)
		go func(idx int, c models.Candidate) {
			defer wg.Done()
			defer sem.Release(1)
			done(idx, c, t.run(ctx, idx, total, c, progress))
		}(i, cand)
	}

	wg.Wait()

	batch := &BatchResult{
		Results: scoring.Rank(results),
		Tested:  total,
	}
	for _, r := range batch.Results {
		if r.IsWorking() {
			batch.Working++
		} else {
			batch.Failed++
		}
		if r.IsFallback {
			batch.Fallbacks++
		}
	}
	batch.Duration = time.Since(startTime)

	t.config.Logger.Info("batch evaluated",
		zap.Int("tested", batch.Tested),
		zap.Int("working", batch.Working),
		zap.Int("fallbacks", batch.Fallbacks),
		zap.Duration("duration", batch.Duration),
	)
	return batch
}

// run drives one candidate through sampling, optional fallback sampling and
// evaluation. It never panics past its boundary.
func (t *Tester) run(ctx context.Context, idx, total int, candidate models.Candidate, progress ProgressFunc) (rec *scoring.EvaluatedCandidate) {
	logger := t.config.Logger.With(zap.String("address", candidate.Address))
	emit := func(state State, r *scoring.EvaluatedCandidate) {
		if progress != nil {
			progress(Progress{Index: idx, Candidate: candidate, State: state, Result: r, Total: total})
		}
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("candidate task panicked", zap.Any("panic", r))
			rec = scoring.Failed(candidate, fmt.Errorf("candidate task panicked: %v", r))
		}
		t.config.Metrics.ObserveCandidate(rec.IsWorking())
	}()

	if _, _, err := candidate.SplitAddress(); err != nil {
		logger.Warn("invalid candidate address", zap.Error(err))
		rec = scoring.Failed(candidate, err)
		emit(StateEvaluated, rec)
		return rec
	}

	emit(StateSampling, nil)
	set := t.sample(ctx, candidate, t.config.Endpoints, t.config.SamplesPerEndpoint)

	if set.NeedsFallback() {
		logger.Info("primary pass too sparse, running fallback pass",
			zap.Int("successful", set.Successful()),
			zap.Int("total", set.Len()),
			zap.Any("errors", set.ErrorCounts()),
		)
		t.config.Metrics.ObserveFallback()
		emit(StateFallbackSampling, nil)
		set = t.sample(ctx, candidate, t.config.FallbackEndpoints, t.config.FallbackSamples)
		set.Fallback = true
	}

	bundle := stats.Compute(set.Latencies(), set.SuccessRate(), t.config.Thresholds)
	rec = t.config.Evaluator.Evaluate(candidate, bundle, set.Len(), set.Fallback)

	logger.Debug("candidate evaluated",
		zap.Bool("working", rec.IsWorking()),
		zap.Bool("fallback", rec.IsFallback),
		zap.Float64("composite", rec.CompositeScore),
		zap.Float64("qos", rec.QoSScore),
		zap.Float64("success_rate", bundle.SuccessRate),
	)
	emit(StateEvaluated, rec)
	return rec
}

// sample probes every endpoint `samples` times, one probe after another.
func (t *Tester) sample(ctx context.Context, candidate models.Candidate, endpoints []string, samples int) *SampleSet {
	set := &SampleSet{Outcomes: make([]models.ProbeOutcome, 0, len(endpoints)*samples)}
	for _, endpoint := range endpoints {
		for i := 0; i < samples; i++ {
			if set.Len() > 0 {
				sleep(ctx, t.config.SampleDelay)
			}
			outcome := t.config.Prober.Probe(ctx, candidate, endpoint)
			t.config.Metrics.ObserveProbe(outcome)
			set.add(outcome)
		}
	}
	return set
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
