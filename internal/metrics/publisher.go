package metrics

import (
	"time"

	"github.com/LavishGent/scancache/internal/types"
)

// Publisher sends metrics to an external sink.
type Publisher interface {
	Gauge(name string, value float64, tags ...string)
	Incr(name string, tags ...string)
	Count(name string, value int64, tags ...string)
	Histogram(name string, value float64, tags ...string)
	Timing(name string, duration time.Duration, tags ...string)
	Event(title, text, alertType string, tags ...string)
	PublishSnapshot(m *types.PerformanceMetrics)
	Close() error
}

// GaugeValue is one named gauge derived from a snapshot.
type GaugeValue struct {
	Name  string
	Value float64
}

// SnapshotGauges flattens a snapshot into the gauges every publisher emits.
func SnapshotGauges(m *types.PerformanceMetrics) []GaugeValue {
	if m == nil {
		return nil
	}
	circuitOpen := 0.0
	if m.CircuitBreakerState == "open" {
		circuitOpen = 1
	}
	return []GaugeValue{
		{"requests.total", float64(m.TotalRequests)},
		{"requests.local_hits", float64(m.LocalHits)},
		{"requests.remote_hits", float64(m.RemoteHits)},
		{"requests.misses", float64(m.Misses)},
		{"performance.hit_ratio", clamp(m.HitRate(), 0, 1)},
		{"performance.local_hit_ratio", clamp(m.LocalHitRate(), 0, 1)},
		{"performance.compression_ratio", clamp(m.CompressionRatio(), 0, 1)},
		{"performance.average_latency_ms", max(0, m.AvgLatencyMs)},
		{"performance.p95_latency_ms", max(0, m.P95LatencyMs)},
		{"writes.total", float64(m.Writes)},
		{"writes.bytes", float64(m.BytesWritten)},
		{"evictions.local", float64(m.LocalEvictions)},
		{"evictions.remote", float64(m.RemoteEvictions)},
		{"maintenance.runs", float64(m.MaintenanceRuns)},
		{"maintenance.failures", float64(m.MaintenanceFailures)},
		{"errors.total", float64(m.ErrorCount)},
		{"circuit.open", circuitOpen},
	}
}

func clamp(val, minVal, maxVal float64) float64 {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}
