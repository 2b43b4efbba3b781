package types

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ManagerOptions holds collaborators injected into the cache manager.
type ManagerOptions struct {
	// Logger is the structured logger to use.
	Logger Logger
	// Metrics receives cache events in addition to the built-in tracker.
	Metrics MetricsRecorder
	// LocalStore overrides the local tier backend selected by config.
	LocalStore BlobStore
	// RemoteStore overrides the remote tier backend selected by config.
	RemoteStore RemoteStore
	// Registerer receives the Prometheus collectors when Prometheus metrics
	// are enabled. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
	// PostgresDSN overrides the remote Postgres DSN from config.
	// Uses SecretString to prevent accidental logging of sensitive values.
	PostgresDSN SecretString
	// RedisAddress overrides the Redis address from config.
	RedisAddress string
	// DisableRemote disables the remote tier entirely.
	DisableRemote bool
	// DisableResilience disables circuit breaker, retry and bulkhead.
	DisableResilience bool
}
