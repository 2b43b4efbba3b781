// Package config provides configuration management for scancache.
package config

import (
	"time"

	"github.com/LavishGent/scancache/internal/types"
)

// SecretString is a string type that redacts its value when marshaled to JSON.
type SecretString = types.SecretString

// NewSecretString creates a new SecretString with the provided value.
func NewSecretString(value string) SecretString {
	return types.NewSecretString(value)
}

// Config contains all configuration for the scancache manager.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type Config struct {
	Local          LocalConfig          `json:"local"`
	Remote         RemoteConfig         `json:"remote"`
	TTL            TTLConfig            `json:"ttl"`
	Popularity     PopularityConfig     `json:"popularity"`
	Compression    CompressionConfig    `json:"compression"`
	Maintenance    MaintenanceConfig    `json:"maintenance"`
	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker"`
	Retry          RetryConfig          `json:"retry"`
	Bulkhead       BulkheadConfig       `json:"bulkhead"`
	Metrics        MetricsConfig        `json:"metrics"`
	KeyValidation  KeyValidationConfig  `json:"keyValidation"`
}

// LocalConfig contains configuration for the local tier.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type LocalConfig struct {
	// Backend is one of "memory", "badger" or "disabled".
	Backend    string `json:"backend" env:"SCANCACHE_LOCAL_BACKEND"`
	MaxEntries int    `json:"maxEntries" env:"SCANCACHE_LOCAL_MAX_ENTRIES"`
	// KeyPrefix names the per-user entry blob; the metrics and last-cleanup
	// blobs are stored under KeyPrefix+"_metrics" and KeyPrefix+"_last_cleanup".
	KeyPrefix string       `json:"keyPrefix" env:"SCANCACHE_LOCAL_KEY_PREFIX"`
	Memory    MemoryConfig `json:"memory"`
	Badger    BadgerConfig `json:"badger"`
}

// MemoryConfig configures the bigcache-backed volatile local store.
type MemoryConfig struct {
	LifeWindow      time.Duration `json:"lifeWindow" env:"SCANCACHE_MEMORY_LIFE_WINDOW"`
	CleanupInterval time.Duration `json:"cleanupInterval"`
	MaxSizeMB       int           `json:"maxSizeMB" env:"SCANCACHE_MEMORY_MAX_SIZE_MB"`
	Shards          int           `json:"shards"`
	MaxEntrySize    int           `json:"maxEntrySize"`
}

// BadgerConfig configures the on-disk local store.
type BadgerConfig struct {
	Path       string `json:"path" env:"SCANCACHE_BADGER_PATH"`
	InMemory   bool   `json:"inMemory" env:"SCANCACHE_BADGER_IN_MEMORY"`
	SyncWrites bool   `json:"syncWrites"`
}

// RemoteConfig contains configuration for the remote tier.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type RemoteConfig struct {
	// Backend is one of "memory", "postgres", "redis" or "disabled".
	Backend           string         `json:"backend" env:"SCANCACHE_REMOTE_BACKEND"`
	MaxEntriesPerUser int            `json:"maxEntriesPerUser" env:"SCANCACHE_REMOTE_MAX_ENTRIES"`
	OperationTimeout  time.Duration  `json:"operationTimeout" env:"SCANCACHE_REMOTE_TIMEOUT"`
	Postgres          PostgresConfig `json:"postgres"`
	Redis             RedisConfig    `json:"redis"`
}

// PostgresConfig configures the relational remote store.
type PostgresConfig struct {
	DSN             SecretString  `json:"dsn" env:"SCANCACHE_POSTGRES_DSN"`
	MaxConns        int32         `json:"maxConns" env:"SCANCACHE_POSTGRES_MAX_CONNS"`
	MinConns        int32         `json:"minConns"`
	MaxConnLifetime time.Duration `json:"maxConnLifetime"`
	MaxConnIdleTime time.Duration `json:"maxConnIdleTime"`
	ConnectTimeout  time.Duration `json:"connectTimeout"`
	RunMigrations   bool          `json:"runMigrations" env:"SCANCACHE_POSTGRES_MIGRATE"`
}

// RedisConfig configures the Redis remote store.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type RedisConfig struct {
	DialTimeout         time.Duration `json:"dialTimeout"`
	ReadTimeout         time.Duration `json:"readTimeout"`
	WriteTimeout        time.Duration `json:"writeTimeout"`
	PoolTimeout         time.Duration `json:"poolTimeout"`
	HealthCheckInterval time.Duration `json:"healthCheckInterval"`
	Password            SecretString  `json:"password" env:"SCANCACHE_REDIS_PASSWORD"`
	Address             string        `json:"address" env:"SCANCACHE_REDIS_ADDRESS"`
	KeyPrefix           string        `json:"keyPrefix" env:"SCANCACHE_REDIS_KEY_PREFIX"`
	DB                  int           `json:"db" env:"SCANCACHE_REDIS_DB"`
	PoolSize            int           `json:"poolSize" env:"SCANCACHE_REDIS_POOL_SIZE"`
	MinIdleConns        int           `json:"minIdleConns"`
	EnableTLS           bool          `json:"enableTLS" env:"SCANCACHE_REDIS_ENABLE_TLS"`
	TLSSkipVerify       bool          `json:"tlsSkipVerify" env:"SCANCACHE_REDIS_TLS_SKIP_VERIFY"`
}

// MinimumTTLFloor is the lowest accepted TTLConfig.Minimum. Every entry
// lives at least this long.
const MinimumTTLFloor = time.Hour

// TTLConfig drives the confidence/source/completeness TTL policy.
type TTLConfig struct {
	High    time.Duration `json:"high" env:"SCANCACHE_TTL_HIGH"`
	Medium  time.Duration `json:"medium" env:"SCANCACHE_TTL_MEDIUM"`
	Low     time.Duration `json:"low" env:"SCANCACHE_TTL_LOW"`
	Default time.Duration `json:"default" env:"SCANCACHE_TTL_DEFAULT"`
	Minimum time.Duration `json:"minimum" env:"SCANCACHE_TTL_MINIMUM"`

	HighConfidence   float64 `json:"highConfidence"`
	MediumConfidence float64 `json:"mediumConfidence"`
	LowConfidence    float64 `json:"lowConfidence"`

	// SourceFactors scales the base TTL per source; missing sources use 1.0.
	SourceFactors map[string]float64 `json:"sourceFactors"`
}

// PopularityConfig sets the access-count thresholds for popularity upgrades.
type PopularityConfig struct {
	MediumThreshold int `json:"mediumThreshold"`
	HighThreshold   int `json:"highThreshold"`
}

// CompressionConfig controls payload compaction.
type CompressionConfig struct {
	Enabled   bool `json:"enabled" env:"SCANCACHE_COMPRESSION_ENABLED"`
	Threshold int  `json:"threshold" env:"SCANCACHE_COMPRESSION_THRESHOLD"`
}

// MaintenanceConfig controls the expiry sweep, normalization and eviction pass.
type MaintenanceConfig struct {
	// Interval is the minimum time between write-triggered passes.
	Interval time.Duration `json:"interval" env:"SCANCACHE_MAINTENANCE_INTERVAL"`
	// Async runs write-triggered passes on a tracked background goroutine.
	Async bool `json:"async" env:"SCANCACHE_MAINTENANCE_ASYNC"`
	// BackgroundInterval, when positive, also runs passes on a ticker for
	// every user seen since start.
	BackgroundInterval time.Duration `json:"backgroundInterval" env:"SCANCACHE_MAINTENANCE_BACKGROUND_INTERVAL"`
	Timeout            time.Duration `json:"timeout"`
}

// CircuitBreakerConfig contains configuration for the circuit breaker pattern.
type CircuitBreakerConfig struct {
	Enabled             bool          `json:"enabled" env:"SCANCACHE_CIRCUIT_BREAKER_ENABLED"`
	FailureThreshold    int           `json:"failureThreshold" env:"SCANCACHE_CIRCUIT_BREAKER_FAILURE_THRESHOLD"`
	SuccessThreshold    int           `json:"successThreshold"`
	OpenDuration        time.Duration `json:"openDuration" env:"SCANCACHE_CIRCUIT_BREAKER_OPEN_DURATION"`
	HalfOpenMaxRequests int           `json:"halfOpenMaxRequests"`
}

// RetryConfig contains configuration for the retry pattern.
type RetryConfig struct {
	InitialBackoff time.Duration `json:"initialBackoff"`
	MaxBackoff     time.Duration `json:"maxBackoff"`
	Multiplier     float64       `json:"multiplier"`
	MaxAttempts    int           `json:"maxAttempts" env:"SCANCACHE_RETRY_MAX_ATTEMPTS"`
	Enabled        bool          `json:"enabled" env:"SCANCACHE_RETRY_ENABLED"`
	Jitter         bool          `json:"jitter"`
}

// BulkheadConfig contains configuration for the bulkhead pattern.
type BulkheadConfig struct {
	Enabled        bool          `json:"enabled" env:"SCANCACHE_BULKHEAD_ENABLED"`
	MaxConcurrent  int           `json:"maxConcurrent" env:"SCANCACHE_BULKHEAD_MAX_CONCURRENT"`
	MaxQueue       int           `json:"maxQueue"`
	AcquireTimeout time.Duration `json:"acquireTimeout"`
}

// MetricsConfig contains configuration for metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type MetricsConfig struct {
	PublishInterval time.Duration    `json:"publishInterval"`
	DataDog         DataDogConfig    `json:"datadog"`
	Prometheus      PrometheusConfig `json:"prometheus"`
	Enabled         bool             `json:"enabled" env:"SCANCACHE_METRICS_ENABLED"`
}

// DataDogConfig contains configuration for DataDog metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type DataDogConfig struct {
	Tags      []string `json:"tags"`
	AgentHost string   `json:"agentHost" env:"DD_AGENT_HOST"`
	Prefix    string   `json:"prefix" env:"SCANCACHE_DATADOG_PREFIX"`
	Port      int      `json:"port" env:"DD_DOGSTATSD_PORT"`
	Enabled   bool     `json:"enabled" env:"SCANCACHE_DATADOG_ENABLED"`
}

// PrometheusConfig contains configuration for the Prometheus recorder.
type PrometheusConfig struct {
	Enabled   bool   `json:"enabled" env:"SCANCACHE_PROMETHEUS_ENABLED"`
	Namespace string `json:"namespace"`
}

// KeyValidationConfig contains configuration for barcode key validation.
type KeyValidationConfig struct {
	MaxKeyLength         int  `json:"maxKeyLength"`
	NormalizeGTIN        bool `json:"normalizeGTIN" env:"SCANCACHE_NORMALIZE_GTIN"`
	RequireValidChecksum bool `json:"requireValidChecksum" env:"SCANCACHE_REQUIRE_VALID_CHECKSUM"`
}

// ToTypesConfig converts this config to a types.KeyValidationConfig.
func (c KeyValidationConfig) ToTypesConfig() types.KeyValidationConfig {
	return types.KeyValidationConfig{
		MaxKeyLength:         c.MaxKeyLength,
		NormalizeGTIN:        c.NormalizeGTIN,
		RequireValidChecksum: c.RequireValidChecksum,
	}
}
