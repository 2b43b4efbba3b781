package scancache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/LavishGent/scancache/internal/types"
)

// ManagerOptions holds collaborators injected into the cache.
type ManagerOptions = types.ManagerOptions

// ManagerOption configures a cache at construction.
type ManagerOption func(*ManagerOptions)

// WithLogger routes the cache's logs to logger.
func WithLogger(logger Logger) ManagerOption {
	return func(o *ManagerOptions) {
		o.Logger = logger
	}
}

// WithMetrics adds a recorder that receives every cache event.
func WithMetrics(metrics MetricsRecorder) ManagerOption {
	return func(o *ManagerOptions) {
		o.Metrics = metrics
	}
}

// WithPrometheusRegisterer registers the Prometheus collectors with reg
// instead of the default registry.
func WithPrometheusRegisterer(reg prometheus.Registerer) ManagerOption {
	return func(o *ManagerOptions) {
		o.Registerer = reg
	}
}

// WithLocalStore replaces the configured local tier backend.
func WithLocalStore(store BlobStore) ManagerOption {
	return func(o *ManagerOptions) {
		o.LocalStore = store
	}
}

// WithRemoteStore replaces the configured remote tier backend.
func WithRemoteStore(store RemoteStore) ManagerOption {
	return func(o *ManagerOptions) {
		o.RemoteStore = store
	}
}

// WithPostgresDSN overrides the Postgres connection string.
func WithPostgresDSN(dsn string) ManagerOption {
	return func(o *ManagerOptions) {
		o.PostgresDSN = types.NewSecretString(dsn)
	}
}

// WithRedisAddress overrides the Redis address.
func WithRedisAddress(addr string) ManagerOption {
	return func(o *ManagerOptions) {
		o.RedisAddress = addr
	}
}

// WithClock replaces time.Now for expiry and maintenance decisions.
func WithClock(now func() time.Time) ManagerOption {
	return func(o *ManagerOptions) {
		o.Clock = now
	}
}

// WithoutRemote runs the cache on the local tier alone.
func WithoutRemote() ManagerOption {
	return func(o *ManagerOptions) {
		o.DisableRemote = true
	}
}

// WithoutResilience turns off the circuit breaker, retries and bulkhead.
func WithoutResilience() ManagerOption {
	return func(o *ManagerOptions) {
		o.DisableResilience = true
	}
}
