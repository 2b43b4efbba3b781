package metrics

import (
	"time"

	"github.com/LavishGent/scancache/internal/types"
)

// MultiRecorder fans every event out to several recorders.
type MultiRecorder struct {
	recorders []types.MetricsRecorder
}

// NewMultiRecorder drops nil recorders.
func NewMultiRecorder(recorders ...types.MetricsRecorder) *MultiRecorder {
	m := &MultiRecorder{}
	for _, r := range recorders {
		if r != nil {
			m.recorders = append(m.recorders, r)
		}
	}
	return m
}

func (m *MultiRecorder) RecordHit(tier string, latency time.Duration) {
	for _, r := range m.recorders {
		r.RecordHit(tier, latency)
	}
}

func (m *MultiRecorder) RecordMiss(latency time.Duration) {
	for _, r := range m.recorders {
		r.RecordMiss(latency)
	}
}

func (m *MultiRecorder) RecordWrite(tier string, size int, compressed bool, latency time.Duration) {
	for _, r := range m.recorders {
		r.RecordWrite(tier, size, compressed, latency)
	}
}

func (m *MultiRecorder) RecordEviction(tier string, count int) {
	for _, r := range m.recorders {
		r.RecordEviction(tier, count)
	}
}

func (m *MultiRecorder) RecordExpired(tier string, count int) {
	for _, r := range m.recorders {
		r.RecordExpired(tier, count)
	}
}

func (m *MultiRecorder) RecordNormalized(tier string, count int) {
	for _, r := range m.recorders {
		r.RecordNormalized(tier, count)
	}
}

func (m *MultiRecorder) RecordError(tier string, operation string, err error) {
	for _, r := range m.recorders {
		r.RecordError(tier, operation, err)
	}
}

func (m *MultiRecorder) RecordMaintenance(duration time.Duration, err error) {
	for _, r := range m.recorders {
		r.RecordMaintenance(duration, err)
	}
}

func (m *MultiRecorder) RecordCircuitBreakerStateChange(from, to string) {
	for _, r := range m.recorders {
		r.RecordCircuitBreakerStateChange(from, to)
	}
}

var _ types.MetricsRecorder = (*MultiRecorder)(nil)
