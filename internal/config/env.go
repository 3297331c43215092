package config

import (
	"os"
	"strings"
)

// EnvPrefix prefixes the environment variable of every settings key:
// engine.concurrency is read from PROXYSCOUT_ENGINE_CONCURRENCY.
const EnvPrefix = "PROXYSCOUT_"

// legacyEnv maps the variable names of the original updater job.
var legacyEnv = map[string]string{
	"BASE_URL":             "channel.base_url",
	"ADMIN_ID":             "channel.admin_id",
	"ADMIN_TOKEN":          "channel.token",
	"CHANNEL_IDS":          "channel.ids",
	"PROXY_REGION":         "source.region",
	"MAX_PROXY_TEST_COUNT": "engine.max_candidates",
	"LOG_LEVEL":            "log.level",
}

// EnvName returns the environment variable read for key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// FromEnv returns the default configuration overridden by the process
// environment.
func FromEnv() (*Config, error) {
	c := Default()
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides c from lookup. Prefixed names win over the legacy ones.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for name, key := range legacyEnv {
		if _, set := lookup(EnvName(key)); set {
			continue
		}
		if v, ok := lookup(name); ok {
			if err := c.Set(key, v); err != nil {
				return err
			}
		}
	}
	for _, key := range Keys() {
		if v, ok := lookup(EnvName(key)); ok {
			if err := c.Set(key, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// EnvSource returns the environment variable that supplies key, if any.
func EnvSource(key string, lookup func(string) (string, bool)) (string, bool) {
	if _, ok := lookup(EnvName(key)); ok {
		return EnvName(key), true
	}
	for name, k := range legacyEnv {
		if k != key {
			continue
		}
		if _, ok := lookup(name); ok {
			return name, true
		}
	}
	return "", false
}
