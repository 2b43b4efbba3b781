package types

import (
	"errors"
	"time"
)

// HealthStatus represents the overall health state.
type HealthStatus int

const (
	// HealthStatusHealthy indicates both tiers operating normally.
	HealthStatusHealthy HealthStatus = iota + 1
	// HealthStatusDegraded indicates partial functionality (e.g., remote backend down).
	HealthStatusDegraded
	// HealthStatusUnhealthy indicates neither tier is usable.
	HealthStatusUnhealthy
)

// String returns the string representation of health status.
func (s HealthStatus) String() string {
	switch s {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusDegraded:
		return "degraded"
	case HealthStatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// HealthMetrics contains overall cache health information.
type HealthMetrics struct {
	Timestamp time.Time
	Local     TierHealth
	Remote    TierHealth
	Status    HealthStatus
	// CircuitBreakerState guards the remote tier.
	CircuitBreakerState string
}

// TierHealth describes one tier's backend.
type TierHealth struct {
	Backend   string
	Status    HealthStatus
	Available bool
	LastError string
}

// CacheStats describes one user's cache contents.
//
//nolint:govet // Stats struct - logical grouping prioritized for readability
type CacheStats struct {
	Timestamp time.Time

	LocalEntries      int
	LocalMaxEntries   int
	RemoteEntries     int64
	RemoteMaxEntries  int
	CompressedEntries int
	ExpiredEntries    int

	// Popularity distribution of local entries.
	HighPopularity   int
	MediumPopularity int
	LowPopularity    int

	TotalAccesses int
	OldestEntry   time.Time
	NewestEntry   time.Time

	LastMaintenance time.Time
}

// PerformanceMetrics is the aggregate, process-persisted view of cache activity.
//
//nolint:govet // Metrics struct with many counters - grouping by category improves readability
type PerformanceMetrics struct {
	Timestamp time.Time

	// Lookups
	TotalRequests int64
	LocalHits     int64
	RemoteHits    int64
	Misses        int64

	// Writes
	Writes            int64
	CompressedWrites  int64
	BytesWritten      int64
	LocalEvictions    int64
	RemoteEvictions   int64
	ExpiredRemoved    int64
	NormalizedEntries int64

	// Maintenance
	MaintenanceRuns     int64
	MaintenanceFailures int64
	ErrorCount          int64

	// Latency (milliseconds)
	AvgLatencyMs float64
	P50LatencyMs float64
	P95LatencyMs float64
	P99LatencyMs float64

	CircuitBreakerState string
}

// HitRate returns the fraction of lookups served by either tier.
func (m *PerformanceMetrics) HitRate() float64 {
	if m.TotalRequests == 0 {
		return 0
	}
	return float64(m.LocalHits+m.RemoteHits) / float64(m.TotalRequests)
}

// LocalHitRate returns the fraction of lookups served by the local tier.
func (m *PerformanceMetrics) LocalHitRate() float64 {
	if m.TotalRequests == 0 {
		return 0
	}
	return float64(m.LocalHits) / float64(m.TotalRequests)
}

// CompressionRatio returns the fraction of writes that were stored compacted.
func (m *PerformanceMetrics) CompressionRatio() float64 {
	if m.Writes == 0 {
		return 0
	}
	return float64(m.CompressedWrites) / float64(m.Writes)
}

// MaintenanceReport summarizes one maintenance pass.
type MaintenanceReport struct {
	UserID           string
	StartedAt        time.Time
	Duration         time.Duration
	RemoteExpired    int64
	LocalExpired     int
	RemoteNormalized int
	LocalNormalized  int
	RemoteEvicted    int
	Skipped          bool
	Errors           []error
}

// Err joins the step errors of the pass, or returns nil.
func (r *MaintenanceReport) Err() error {
	return errors.Join(r.Errors...)
}
