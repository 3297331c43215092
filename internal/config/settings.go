package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	pkgerrors "proxyscout/pkg/errors"
)

// setting binds a settings key to a Config field.
type setting struct {
	help string
	get  func(c *Config) string
	set  func(c *Config, value string) error
}

func intSetting(help string, field func(c *Config) *int) setting {
	return setting{
		help: help,
		get:  func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, value string) error {
			v, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return err
			}
			*field(c) = v
			return nil
		},
	}
}

func floatSetting(help string, field func(c *Config) *float64) setting {
	return setting{
		help: help,
		get:  func(c *Config) string { return strconv.FormatFloat(*field(c), 'g', -1, 64) },
		set: func(c *Config, value string) error {
			v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return err
			}
			*field(c) = v
			return nil
		},
	}
}

func stringSetting(help string, field func(c *Config) *string) setting {
	return setting{
		help: help,
		get:  func(c *Config) string { return *field(c) },
		set: func(c *Config, value string) error {
			*field(c) = strings.TrimSpace(value)
			return nil
		},
	}
}

func durationSetting(help string, field func(c *Config) *time.Duration) setting {
	return setting{
		help: help,
		get:  func(c *Config) string { return field(c).String() },
		set: func(c *Config, value string) error {
			v, err := parseDuration(value)
			if err != nil {
				return err
			}
			*field(c) = v
			return nil
		},
	}
}

func boolSetting(help string, field func(c *Config) *bool) setting {
	return setting{
		help: help,
		get:  func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, value string) error {
			v, err := strconv.ParseBool(strings.TrimSpace(value))
			if err != nil {
				return err
			}
			*field(c) = v
			return nil
		},
	}
}

func listSetting(help string, field func(c *Config) *[]string) setting {
	return setting{
		help: help,
		get:  func(c *Config) string { return strings.Join(*field(c), ",") },
		set: func(c *Config, value string) error {
			*field(c) = splitList(value)
			return nil
		},
	}
}

// parseDuration accepts Go durations and bare integers, read as milliseconds.
func parseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(value)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseChannelIDs accepts a JSON array ("[1, 2]") or a comma separated list.
func parseChannelIDs(value string) ([]int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if strings.HasPrefix(value, "[") {
		var ids []int
		if err := json.Unmarshal([]byte(value), &ids); err != nil {
			return nil, fmt.Errorf("invalid channel id list: %w", err)
		}
		return ids, nil
	}
	var ids []int
	for _, part := range splitList(value) {
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid channel id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

var settings = map[string]setting{
	"engine.max_candidates":       intSetting("candidates tested per run (0 = all)", func(c *Config) *int { return &c.Engine.MaxCandidates }),
	"engine.concurrency":          intSetting("candidates probed in parallel", func(c *Config) *int { return &c.Engine.Concurrency }),
	"engine.samples_per_endpoint": intSetting("probes per endpoint on the primary pass", func(c *Config) *int { return &c.Engine.SamplesPerEndpoint }),
	"engine.fallback_samples":     intSetting("probes per endpoint on the fallback pass", func(c *Config) *int { return &c.Engine.FallbackSamples }),
	"engine.request_timeout":      durationSetting("timeout of one probe", func(c *Config) *time.Duration { return &c.Engine.RequestTimeout }),
	"engine.sample_delay":         durationSetting("pause between probes of one candidate", func(c *Config) *time.Duration { return &c.Engine.SampleDelay }),
	"engine.batch_timeout":        durationSetting("deadline of a whole batch (0 = none)", func(c *Config) *time.Duration { return &c.Engine.BatchTimeout }),
	"engine.endpoint_category":    stringSetting("probe endpoint category: fast, standard, heavy, mixed", func(c *Config) *string { return &c.Engine.EndpointCategory }),
	"engine.custom_endpoints":     listSetting("comma separated probe URLs, overrides the category", func(c *Config) *[]string { return &c.Engine.CustomEndpoints }),
	"engine.fallback_endpoints":   listSetting("comma separated probe URLs of the fallback pass", func(c *Config) *[]string { return &c.Engine.FallbackEndpoints }),
	"engine.proxy_password":       stringSetting("password paired with every candidate credential", func(c *Config) *string { return &c.Engine.ProxyPassword }),
	"engine.min_success_rate":     floatSetting("selection: minimum success rate", func(c *Config) *float64 { return &c.Engine.MinSuccessRate }),
	"engine.max_latency_ms":       floatSetting("selection: maximum mean latency", func(c *Config) *float64 { return &c.Engine.MaxLatencyMS }),
	"engine.min_composite_score":  floatSetting("selection: minimum composite score", func(c *Config) *float64 { return &c.Engine.MinCompositeScore }),
	"engine.min_qos_score":        floatSetting("selection: minimum QoS score", func(c *Config) *float64 { return &c.Engine.MinQoSScore }),
	"engine.spike_threshold_ms":   floatSetting("latency above which a sample is a spike", func(c *Config) *float64 { return &c.Engine.SpikeThresholdMS }),
	"engine.trim_ratio":           floatSetting("trimmed mean ratio per side", func(c *Config) *float64 { return &c.Engine.TrimRatio }),
	"engine.weight_performance":   floatSetting("composite weight of the performance score", func(c *Config) *float64 { return &c.Engine.Weights.Performance }),
	"engine.weight_stability":     floatSetting("composite weight of the stability score", func(c *Config) *float64 { return &c.Engine.Weights.Stability }),
	"engine.weight_availability":  floatSetting("composite weight of the availability score", func(c *Config) *float64 { return &c.Engine.Weights.Availability }),

	"source.url":         stringSetting("candidate list URL", func(c *Config) *string { return &c.Source.URL }),
	"source.region":      stringSetting("region column to select (empty = all)", func(c *Config) *string { return &c.Source.Region }),
	"source.timeout":     durationSetting("list download timeout", func(c *Config) *time.Duration { return &c.Source.Timeout }),
	"source.max_retries": intSetting("list download retries", func(c *Config) *int { return &c.Source.MaxRetries }),

	"channel.base_url": stringSetting("management API base URL", func(c *Config) *string { return &c.Channel.BaseURL }),
	"channel.admin_id": stringSetting("management API user id", func(c *Config) *string { return &c.Channel.AdminID }),
	"channel.token":    stringSetting("management API token", func(c *Config) *string { return &c.Channel.Token }),
	"channel.timeout":  durationSetting("management API timeout", func(c *Config) *time.Duration { return &c.Channel.Timeout }),
	"channel.ids": {
		help: "channel ids to update, JSON array or comma separated",
		get: func(c *Config) string {
			parts := make([]string, len(c.Channel.ChannelIDs))
			for i, id := range c.Channel.ChannelIDs {
				parts[i] = strconv.Itoa(id)
			}
			return strings.Join(parts, ",")
		},
		set: func(c *Config, value string) error {
			ids, err := parseChannelIDs(value)
			if err != nil {
				return err
			}
			c.Channel.ChannelIDs = ids
			return nil
		},
	},

	"log.level":        stringSetting("log level: debug, info, warn, error", func(c *Config) *string { return &c.Log.Level }),
	"log.file":         stringSetting("JSON log file (empty = default path, none = off)", func(c *Config) *string { return &c.Log.File }),
	"log.max_size_mb":  intSetting("log file size before rotation", func(c *Config) *int { return &c.Log.MaxSizeMB }),
	"log.max_backups":  intSetting("rotated log files kept", func(c *Config) *int { return &c.Log.MaxBackups }),
	"log.max_age_days": intSetting("days rotated log files are kept", func(c *Config) *int { return &c.Log.MaxAgeDays }),
	"log.compress":     boolSetting("gzip rotated log files", func(c *Config) *bool { return &c.Log.Compress }),

	"schedule.cron":         stringSetting("daemon cron expression", func(c *Config) *string { return &c.Schedule.Cron }),
	"schedule.metrics_addr": stringSetting("daemon metrics listen address (empty = off)", func(c *Config) *string { return &c.Schedule.MetricsAddr }),
}

// secretKeys are masked by Masked.
var secretKeys = map[string]bool{"channel.token": true}

// Keys returns every settings key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Help returns the description of key.
func Help(key string) string {
	return settings[key].help
}

// Set assigns value to key.
func (c *Config) Set(key, value string) error {
	s, ok := settings[key]
	if !ok {
		return fmt.Errorf("%w: %s", pkgerrors.ErrSettingUnknown, key)
	}
	if err := s.set(c, value); err != nil {
		return &pkgerrors.ConfigError{Field: key, Err: fmt.Errorf("%w: %v", pkgerrors.ErrConfigInvalid, err)}
	}
	return nil
}

// Get returns the current value of key.
func (c *Config) Get(key string) (string, error) {
	s, ok := settings[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", pkgerrors.ErrSettingUnknown, key)
	}
	return s.get(c), nil
}

// Masked returns the value of key with secrets hidden.
func (c *Config) Masked(key string) string {
	v, _ := c.Get(key)
	if secretKeys[key] && v != "" {
		return "********"
	}
	return v
}

// ApplySettings applies stored settings. Unknown keys are returned so the
// caller can report them; they do not abort loading.
func (c *Config) ApplySettings(values map[string]string) (unknown []string, err error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, ok := settings[k]; !ok {
			unknown = append(unknown, k)
			continue
		}
		if err := c.Set(k, values[k]); err != nil {
			return unknown, err
		}
	}
	return unknown, nil
}
