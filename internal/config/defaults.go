package config

import "time"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Local: LocalConfig{
			Backend:    "memory",
			MaxEntries: 100,
			KeyPrefix:  "barcode_cache",
			Memory: MemoryConfig{
				LifeWindow:      14 * 24 * time.Hour,
				CleanupInterval: 10 * time.Minute,
				MaxSizeMB:       64,
				Shards:          64,
				MaxEntrySize:    1024 * 1024, // 1MB
			},
			Badger: BadgerConfig{
				Path: "./data/scancache",
			},
		},
		Remote: RemoteConfig{
			Backend:           "memory",
			MaxEntriesPerUser: 1000,
			OperationTimeout:  5 * time.Second,
			Postgres: PostgresConfig{
				MaxConns:        10,
				MinConns:        2,
				MaxConnLifetime: time.Hour,
				MaxConnIdleTime: 30 * time.Minute,
				ConnectTimeout:  5 * time.Second,
				RunMigrations:   true,
			},
			Redis: RedisConfig{
				Address:             "localhost:6379",
				KeyPrefix:           "scancache:",
				PoolSize:            50,
				MinIdleConns:        5,
				DialTimeout:         5 * time.Second,
				ReadTimeout:         3 * time.Second,
				WriteTimeout:        3 * time.Second,
				PoolTimeout:         4 * time.Second,
				HealthCheckInterval: 5 * time.Second,
			},
		},
		TTL: defaultTTL(),
		Popularity: PopularityConfig{
			MediumThreshold: 3,
			HighThreshold:   10,
		},
		Compression: CompressionConfig{
			Enabled:   true,
			Threshold: 1024,
		},
		Maintenance: MaintenanceConfig{
			Interval: 6 * time.Hour,
			Async:    true,
			Timeout:  30 * time.Second,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             true,
			FailureThreshold:    5,
			SuccessThreshold:    2,
			OpenDuration:        30 * time.Second,
			HalfOpenMaxRequests: 3,
		},
		Retry: RetryConfig{
			Enabled:        true,
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
			Jitter:         true,
		},
		Bulkhead: BulkheadConfig{
			Enabled:        true,
			MaxConcurrent:  50,
			MaxQueue:       25,
			AcquireTimeout: 100 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			PublishInterval: 10 * time.Second,
			DataDog: DataDogConfig{
				Enabled:   false,
				AgentHost: "127.0.0.1",
				Port:      8125,
				Prefix:    "scancache",
				Tags:      []string{},
			},
			Prometheus: PrometheusConfig{
				Enabled:   false,
				Namespace: "scancache",
			},
		},
		KeyValidation: KeyValidationConfig{
			MaxKeyLength:         64,
			NormalizeGTIN:        true,
			RequireValidChecksum: false,
		},
	}
}

func defaultTTL() TTLConfig {
	return TTLConfig{
		High:             7 * 24 * time.Hour,
		Medium:           3 * 24 * time.Hour,
		Low:              24 * time.Hour,
		Default:          12 * time.Hour,
		Minimum:          time.Hour,
		HighConfidence:   0.9,
		MediumConfidence: 0.7,
		LowConfidence:    0.5,
		SourceFactors: map[string]float64{
			"cosmos":        1.5,
			"openfoodfacts": 1.2,
			"manual":        0.8,
		},
	}
}

// ForTesting returns a minimal configuration suitable for unit tests.
// Both tiers run in memory, maintenance runs inline and resilience is off.
func ForTesting() *Config {
	cfg := DefaultConfig()
	cfg.Local.Backend = "memory"
	cfg.Local.KeyPrefix = "test_cache"
	cfg.Local.Memory = MemoryConfig{
		LifeWindow:      24 * time.Hour,
		CleanupInterval: 0,
		MaxSizeMB:       16,
		Shards:          16,
		MaxEntrySize:    256 * 1024,
	}
	cfg.Local.Badger = BadgerConfig{InMemory: true}
	cfg.Remote.Backend = "memory"
	cfg.Remote.OperationTimeout = time.Second
	cfg.Remote.Postgres.RunMigrations = true
	cfg.Remote.Redis.KeyPrefix = "test:"
	cfg.Remote.Redis.PoolSize = 10
	cfg.Remote.Redis.MinIdleConns = 1
	cfg.Remote.Redis.DialTimeout = time.Second
	cfg.Remote.Redis.ReadTimeout = time.Second
	cfg.Remote.Redis.WriteTimeout = time.Second
	cfg.Remote.Redis.PoolTimeout = time.Second
	cfg.Remote.Redis.HealthCheckInterval = 0
	cfg.Maintenance.Async = false
	cfg.Maintenance.Timeout = 5 * time.Second
	cfg.CircuitBreaker = CircuitBreakerConfig{
		Enabled:             false,
		FailureThreshold:    3,
		SuccessThreshold:    1,
		OpenDuration:        time.Second,
		HalfOpenMaxRequests: 1,
	}
	cfg.Retry = RetryConfig{
		Enabled:        false,
		MaxAttempts:    1,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		Multiplier:     2.0,
	}
	cfg.Bulkhead = BulkheadConfig{
		Enabled:        false,
		MaxConcurrent:  10,
		MaxQueue:       5,
		AcquireTimeout: 50 * time.Millisecond,
	}
	cfg.Metrics = MetricsConfig{
		Enabled:         false,
		PublishInterval: time.Second,
	}
	return cfg
}

// ForTestingWithPostgres returns a test config backed by the given Postgres DSN.
func ForTestingWithPostgres(dsn string) *Config {
	cfg := ForTesting()
	cfg.Remote.Backend = "postgres"
	cfg.Remote.Postgres.DSN = NewSecretString(dsn)
	return cfg
}

// ForTestingWithRedis returns a test config backed by the given Redis address.
func ForTestingWithRedis(addr string) *Config {
	cfg := ForTesting()
	cfg.Remote.Backend = "redis"
	cfg.Remote.Redis.Address = addr
	return cfg
}
