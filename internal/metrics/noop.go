package metrics

import (
	"time"

	"github.com/LavishGent/scancache/internal/types"
)

// NoOpRecorder discards everything. Used when metrics are disabled.
type NoOpRecorder struct{}

func NewNoOpRecorder() *NoOpRecorder {
	return &NoOpRecorder{}
}

func (r *NoOpRecorder) RecordHit(tier string, latency time.Duration)                              {}
func (r *NoOpRecorder) RecordMiss(latency time.Duration)                                          {}
func (r *NoOpRecorder) RecordWrite(tier string, size int, compressed bool, latency time.Duration) {}
func (r *NoOpRecorder) RecordEviction(tier string, count int)                                     {}
func (r *NoOpRecorder) RecordExpired(tier string, count int)                                      {}
func (r *NoOpRecorder) RecordNormalized(tier string, count int)                                   {}
func (r *NoOpRecorder) RecordError(tier string, operation string, err error)                      {}
func (r *NoOpRecorder) RecordMaintenance(duration time.Duration, err error)                       {}
func (r *NoOpRecorder) RecordCircuitBreakerStateChange(from, to string)                           {}

// NoOpPublisher is a no-operation metrics publisher for testing or when disabled.
type NoOpPublisher struct{}

func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (p *NoOpPublisher) Gauge(name string, value float64, tags ...string)          {}
func (p *NoOpPublisher) Incr(name string, tags ...string)                          {}
func (p *NoOpPublisher) Count(name string, value int64, tags ...string)            {}
func (p *NoOpPublisher) Histogram(name string, value float64, tags ...string)      {}
func (p *NoOpPublisher) Timing(name string, duration time.Duration, tags ...string) {}
func (p *NoOpPublisher) Event(title, text, alertType string, tags ...string)       {}
func (p *NoOpPublisher) PublishSnapshot(m *types.PerformanceMetrics)               {}
func (p *NoOpPublisher) Close() error                                              { return nil }

var (
	_ types.MetricsRecorder = (*NoOpRecorder)(nil)
	_ Publisher             = (*NoOpPublisher)(nil)
)
