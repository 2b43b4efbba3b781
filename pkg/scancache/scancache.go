package scancache

import (
	"github.com/LavishGent/scancache/internal/cache"
	"github.com/LavishGent/scancache/internal/config"
)

// New creates a cache with the default configuration.
func New(opts ...ManagerOption) (Cache, error) {
	return NewFromConfig(config.DefaultConfig(), opts...)
}

// NewFromConfig creates a cache from cfg.
func NewFromConfig(cfg *config.Config, opts ...ManagerOption) (Cache, error) {
	managerOpts := &ManagerOptions{}
	for _, opt := range opts {
		opt(managerOpts)
	}
	m, err := cache.NewManager(cfg, managerOpts)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewFromFile creates a cache from a JSON config file with environment overrides.
func NewFromFile(path string, opts ...ManagerOption) (Cache, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts...)
}

// NewLocalOnly creates a cache without a remote tier.
func NewLocalOnly(opts ...ManagerOption) (Cache, error) {
	cfg := config.DefaultConfig()
	cfg.Remote.Backend = "disabled"
	return NewFromConfig(cfg, opts...)
}

// Config returns a default configuration that can be modified before creating a cache.
func Config() *config.Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration suitable for unit tests.
func TestConfig() *config.Config {
	return config.ForTesting()
}
