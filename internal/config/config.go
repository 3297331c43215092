// Package config holds the runtime configuration of proxyscout. A Config is
// assembled once from defaults, stored settings, the environment and command
// line flags, in that order, and then passed down read-only.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"proxyscout/internal/latency"
	"proxyscout/internal/metrics"
	"proxyscout/internal/scoring"
	"proxyscout/internal/source"
	"proxyscout/internal/stats"
	pkgerrors "proxyscout/pkg/errors"
)

// Config represents application configuration
type Config struct {
	Engine   EngineConfig
	Source   SourceConfig
	Channel  ChannelConfig
	Storage  StorageConfig
	Log      LogConfig
	Schedule ScheduleConfig
}

// EngineConfig configures candidate evaluation and selection.
type EngineConfig struct {
	MaxCandidates      int
	Concurrency        int
	SamplesPerEndpoint int
	RequestTimeout     time.Duration
	EndpointCategory   string
	CustomEndpoints    []string
	FallbackEndpoints  []string
	FallbackSamples    int
	SampleDelay        time.Duration
	BatchTimeout       time.Duration
	ProxyPassword      string

	MinSuccessRate    float64
	MaxLatencyMS      float64
	MinCompositeScore float64
	MinQoSScore       float64
	SpikeThresholdMS  float64
	TrimRatio         float64
	Weights           scoring.Weights
}

// SourceConfig locates the candidate list.
type SourceConfig struct {
	URL        string
	Region     string
	Timeout    time.Duration
	MaxRetries int
}

// ChannelConfig holds the management API the winner is pushed to.
type ChannelConfig struct {
	BaseURL    string
	AdminID    string
	Token      string
	ChannelIDs []int
	Timeout    time.Duration
}

// StorageConfig locates the database.
type StorageConfig struct {
	DBPath string // empty selects the default data directory
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string
	File       string // empty disables the file sink
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// ScheduleConfig configures the daemon.
type ScheduleConfig struct {
	Cron        string
	MetricsAddr string // empty disables the metrics endpoint
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxCandidates:      5,
			Concurrency:        5,
			SamplesPerEndpoint: 3,
			RequestTimeout:     10 * time.Second,
			EndpointCategory:   string(latency.CategoryStandard),
			FallbackEndpoints:  append([]string(nil), latency.DefaultFallbackEndpoints...),
			FallbackSamples:    3,
			SampleDelay:        200 * time.Millisecond,
			ProxyPassword:      latency.DefaultProxyPassword,
			MinSuccessRate:     0.8,
			MaxLatencyMS:       5000,
			MinCompositeScore:  0.6,
			MinQoSScore:        0.5,
			SpikeThresholdMS:   1000,
			TrimRatio:          0.1,
			Weights:            scoring.DefaultWeights(),
		},
		Source: SourceConfig{
			URL:        source.DefaultListURL,
			Region:     source.DefaultRegion,
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Channel: ChannelConfig{
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Schedule: ScheduleConfig{
			Cron: "0 * * * *",
		},
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Engine.CustomEndpoints = append([]string(nil), c.Engine.CustomEndpoints...)
	out.Engine.FallbackEndpoints = append([]string(nil), c.Engine.FallbackEndpoints...)
	out.Channel.ChannelIDs = append([]int(nil), c.Channel.ChannelIDs...)
	return &out
}

func invalid(field, format string, args ...interface{}) error {
	return &pkgerrors.ConfigError{
		Field: field,
		Err:   fmt.Errorf("%w: %s", pkgerrors.ErrConfigInvalid, fmt.Sprintf(format, args...)),
	}
}

// Validate checks the configuration used by evaluation runs.
func (c *Config) Validate() error {
	e := c.Engine
	switch {
	case e.MaxCandidates < 0:
		return invalid("engine.max_candidates", "must be >= 0")
	case e.Concurrency < 1:
		return invalid("engine.concurrency", "must be >= 1")
	case e.SamplesPerEndpoint < 1:
		return invalid("engine.samples_per_endpoint", "must be >= 1")
	case e.FallbackSamples < 1:
		return invalid("engine.fallback_samples", "must be >= 1")
	case e.RequestTimeout <= 0:
		return invalid("engine.request_timeout", "must be positive")
	case e.SampleDelay < 0:
		return invalid("engine.sample_delay", "must be >= 0")
	case e.BatchTimeout < 0:
		return invalid("engine.batch_timeout", "must be >= 0")
	case e.SpikeThresholdMS <= 0:
		return invalid("engine.spike_threshold_ms", "must be positive")
	case e.MaxLatencyMS <= 0:
		return invalid("engine.max_latency_ms", "must be positive")
	case e.TrimRatio < 0 || e.TrimRatio >= 0.5:
		return invalid("engine.trim_ratio", "must be in [0, 0.5)")
	}
	for field, v := range map[string]float64{
		"engine.min_success_rate":    e.MinSuccessRate,
		"engine.min_composite_score": e.MinCompositeScore,
		"engine.min_qos_score":       e.MinQoSScore,
	} {
		if v < 0 || v > 1 {
			return invalid(field, "must be in [0, 1]")
		}
	}
	if _, err := e.Weights.Normalize(); err != nil {
		return &pkgerrors.ConfigError{Field: "engine.weights", Err: err}
	}
	if _, err := e.Endpoints(); err != nil {
		return &pkgerrors.ConfigError{Field: "engine.endpoints", Err: fmt.Errorf("%w: %v", pkgerrors.ErrConfigInvalid, err)}
	}
	for _, raw := range e.FallbackEndpoints {
		if err := latency.ValidateEndpoint(raw); err != nil {
			return &pkgerrors.ConfigError{Field: "engine.fallback_endpoints", Err: fmt.Errorf("%w: %v", pkgerrors.ErrConfigInvalid, err)}
		}
	}
	if strings.TrimSpace(c.Source.URL) == "" {
		return invalid("source.url", "must not be empty")
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return invalid("log.level", "%v", err)
	}
	return nil
}

// ValidateChannel checks the settings needed to push a selection.
func (c *Config) ValidateChannel() error {
	switch {
	case strings.TrimSpace(c.Channel.BaseURL) == "":
		return invalid("channel.base_url", "must not be empty")
	case c.Channel.Token == "":
		return invalid("channel.token", "must not be empty")
	case len(c.Channel.ChannelIDs) == 0:
		return &pkgerrors.ConfigError{Field: "channel.ids", Err: pkgerrors.ErrNoChannels}
	}
	return nil
}

// ValidateSchedule checks the daemon settings.
func (c *Config) ValidateSchedule() error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	defer s.Shutdown()
	if _, err := s.NewJob(gocron.CronJob(c.Schedule.Cron, false), gocron.NewTask(func() {})); err != nil {
		return invalid("schedule.cron", "%v", err)
	}
	return nil
}

// Endpoints resolves the primary probe endpoints.
func (e EngineConfig) Endpoints() ([]string, error) {
	category, err := latency.ParseCategory(e.EndpointCategory)
	if err != nil {
		return nil, err
	}
	return latency.Endpoints(category, e.CustomEndpoints)
}

// Thresholds returns the statistics thresholds.
func (e EngineConfig) Thresholds() stats.Thresholds {
	return stats.Thresholds{
		SpikeThresholdMS:   e.SpikeThresholdMS,
		TimeoutThresholdMS: float64(e.RequestTimeout.Milliseconds()),
		TrimRatio:          e.TrimRatio,
	}
}

// Policy returns the selection policy.
func (e EngineConfig) Policy(logger *zap.Logger) scoring.Policy {
	return scoring.Policy{
		MinComposite:   e.MinCompositeScore,
		MinQoS:         e.MinQoSScore,
		MinSuccessRate: e.MinSuccessRate,
		MaxLatencyMS:   e.MaxLatencyMS,
		Logger:         logger,
	}
}

// TesterConfig builds the evaluation engine configuration. prober may be nil
// to probe over HTTP.
func (e EngineConfig) TesterConfig(prober latency.Prober, rec *metrics.Recorder, logger *zap.Logger) (latency.TesterConfig, error) {
	endpoints, err := e.Endpoints()
	if err != nil {
		return latency.TesterConfig{}, err
	}
	evaluator, err := scoring.NewEvaluator(e.Weights)
	if err != nil {
		return latency.TesterConfig{}, err
	}
	if prober == nil {
		prober = latency.NewHTTPProber(e.RequestTimeout, e.ProxyPassword)
	}
	return latency.TesterConfig{
		Workers:            int64(e.Concurrency),
		Timeout:            e.RequestTimeout,
		SamplesPerEndpoint: e.SamplesPerEndpoint,
		Endpoints:          endpoints,
		FallbackEndpoints:  e.FallbackEndpoints,
		FallbackSamples:    e.FallbackSamples,
		SampleDelay:        e.SampleDelay,
		MaxCandidates:      e.MaxCandidates,
		BatchTimeout:       e.BatchTimeout,
		Thresholds:         e.Thresholds(),
		Prober:             prober,
		Evaluator:          evaluator,
		Metrics:            rec,
		Logger:             logger,
	}, nil
}
