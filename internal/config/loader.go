package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-json"
)

var (
	validLocalBackends  = []string{"memory", "badger", "disabled"}
	validRemoteBackends = []string{"memory", "postgres", "redis", "disabled"}
)

// Load loads configuration from a JSON file.
// If the file doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a JSON file and applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays SCANCACHE_* and DD_* environment variables onto cfg.
// Unset variables leave the existing values untouched.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if v := os.Getenv("DD_AGENT_HOST"); v != "" {
		cfg.Metrics.DataDog.Enabled = true
	}
	if v := os.Getenv("DD_SERVICE"); v != "" {
		cfg.Metrics.DataDog.Prefix = v
	}
	if v := os.Getenv("DD_ENV"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "env:"+v)
	}
	if v := os.Getenv("DD_VERSION"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "version:"+v)
	}
	return nil
}

// Validate checks if the configuration is valid.
//
//nolint:gocyclo // One check per setting
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(validLocalBackends, c.Local.Backend) {
		errs = append(errs, fmt.Errorf("local.backend must be one of %s, got %q",
			strings.Join(validLocalBackends, ", "), c.Local.Backend))
	}
	if c.Local.MaxEntries <= 0 {
		errs = append(errs, errors.New("local.maxEntries must be positive"))
	}
	if c.Local.KeyPrefix == "" {
		errs = append(errs, errors.New("local.keyPrefix is required"))
	}
	if c.Local.Backend == "memory" {
		if c.Local.Memory.MaxSizeMB <= 0 {
			errs = append(errs, errors.New("local.memory.maxSizeMB must be positive"))
		}
		if c.Local.Memory.Shards <= 0 || (c.Local.Memory.Shards&(c.Local.Memory.Shards-1)) != 0 {
			errs = append(errs, errors.New("local.memory.shards must be a positive power of 2"))
		}
	}
	if c.Local.Backend == "badger" && !c.Local.Badger.InMemory && c.Local.Badger.Path == "" {
		errs = append(errs, errors.New("local.badger.path is required unless inMemory is set"))
	}

	if !slices.Contains(validRemoteBackends, c.Remote.Backend) {
		errs = append(errs, fmt.Errorf("remote.backend must be one of %s, got %q",
			strings.Join(validRemoteBackends, ", "), c.Remote.Backend))
	}
	if c.Remote.MaxEntriesPerUser <= 0 {
		errs = append(errs, errors.New("remote.maxEntriesPerUser must be positive"))
	}
	switch c.Remote.Backend {
	case "postgres":
		if c.Remote.Postgres.DSN.IsEmpty() {
			errs = append(errs, errors.New("remote.postgres.dsn is required when the postgres backend is selected"))
		}
		if c.Remote.Postgres.MaxConns <= 0 {
			errs = append(errs, errors.New("remote.postgres.maxConns must be positive"))
		}
	case "redis":
		if c.Remote.Redis.Address == "" {
			errs = append(errs, errors.New("remote.redis.address is required when the redis backend is selected"))
		}
		if c.Remote.Redis.PoolSize <= 0 {
			errs = append(errs, errors.New("remote.redis.poolSize must be positive"))
		}
	}

	if c.TTL.Minimum < MinimumTTLFloor {
		errs = append(errs, fmt.Errorf("ttl.minimum must be at least %s", MinimumTTLFloor))
	}
	if c.TTL.High < c.TTL.Medium || c.TTL.Medium < c.TTL.Low || c.TTL.Low < c.TTL.Default {
		errs = append(errs, errors.New("ttl durations must not decrease with confidence"))
	}
	if !(c.TTL.LowConfidence <= c.TTL.MediumConfidence && c.TTL.MediumConfidence <= c.TTL.HighConfidence) {
		errs = append(errs, errors.New("ttl confidence thresholds must be ascending"))
	}
	for src, f := range c.TTL.SourceFactors {
		if f <= 0 {
			errs = append(errs, fmt.Errorf("ttl.sourceFactors[%s] must be positive", src))
		}
	}

	if c.Popularity.MediumThreshold <= 0 || c.Popularity.HighThreshold < c.Popularity.MediumThreshold {
		errs = append(errs, errors.New("popularity thresholds must be positive and ascending"))
	}

	if c.Compression.Enabled && c.Compression.Threshold < 0 {
		errs = append(errs, errors.New("compression.threshold must not be negative"))
	}

	if c.Maintenance.Interval < 0 {
		errs = append(errs, errors.New("maintenance.interval must not be negative"))
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold <= 0 {
			errs = append(errs, errors.New("circuitBreaker.failureThreshold must be positive"))
		}
		if c.CircuitBreaker.OpenDuration <= 0 {
			errs = append(errs, errors.New("circuitBreaker.openDuration must be positive"))
		}
	}

	if c.Retry.Enabled && c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry.maxAttempts must be positive"))
	}

	if c.Bulkhead.Enabled && c.Bulkhead.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("bulkhead.maxConcurrent must be positive"))
	}

	if c.KeyValidation.MaxKeyLength <= 0 {
		errs = append(errs, errors.New("keyValidation.maxKeyLength must be positive"))
	}

	return errors.Join(errs...)
}
