package scancache

import (
	"github.com/LavishGent/scancache/internal/types"
)

// Re-export health and statistics types from internal/types.
type (
	// HealthStatus represents the overall health state.
	HealthStatus = types.HealthStatus

	// HealthMetrics contains overall cache health information.
	HealthMetrics = types.HealthMetrics

	// TierHealth describes one tier's backend.
	TierHealth = types.TierHealth

	// CacheStats describes one user's cache contents.
	CacheStats = types.CacheStats

	// PerformanceMetrics is the process-wide activity summary.
	PerformanceMetrics = types.PerformanceMetrics

	// MaintenanceReport summarizes one maintenance pass.
	MaintenanceReport = types.MaintenanceReport
)

// Re-export health status constants.
const (
	HealthStatusHealthy   = types.HealthStatusHealthy
	HealthStatusDegraded  = types.HealthStatusDegraded
	HealthStatusUnhealthy = types.HealthStatusUnhealthy
)
