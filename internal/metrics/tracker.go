// Package metrics collects cache activity and publishes it to logs, DataDog
// or Prometheus.
package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/scancache/internal/types"
)

const (
	defaultLatencyBufferSize = 10000
)

// Tracker is the in-process MetricsRecorder behind GetPerformanceMetrics.
// Counters can be seeded from a persisted snapshot with Restore.
type Tracker struct {
	totalRequests atomic.Int64
	localHits     atomic.Int64
	remoteHits    atomic.Int64
	misses        atomic.Int64

	writes            atomic.Int64
	compressedWrites  atomic.Int64
	bytesWritten      atomic.Int64
	localEvictions    atomic.Int64
	remoteEvictions   atomic.Int64
	expiredRemoved    atomic.Int64
	normalizedEntries atomic.Int64

	maintenanceRuns     atomic.Int64
	maintenanceFailures atomic.Int64
	errorCount          atomic.Int64

	latencyMu     sync.RWMutex
	latencyBuffer []time.Duration
	latencyIndex  int
	latencyCount  int

	circuitState atomic.Value
	now          func() time.Time
}

func NewTracker() *Tracker {
	t := &Tracker{
		latencyBuffer: make([]time.Duration, defaultLatencyBufferSize),
		now:           time.Now,
	}
	t.circuitState.Store("closed")
	return t
}

func (t *Tracker) RecordHit(tier string, latency time.Duration) {
	switch tier {
	case types.TierLocal:
		t.localHits.Add(1)
	case types.TierRemote:
		t.remoteHits.Add(1)
	}
	t.totalRequests.Add(1)
	t.recordLatency(latency)
}

func (t *Tracker) RecordMiss(latency time.Duration) {
	t.misses.Add(1)
	t.totalRequests.Add(1)
	t.recordLatency(latency)
}

func (t *Tracker) RecordWrite(tier string, size int, compressed bool, latency time.Duration) {
	t.writes.Add(1)
	if compressed {
		t.compressedWrites.Add(1)
	}
	t.bytesWritten.Add(int64(size))
	t.recordLatency(latency)
}

func (t *Tracker) RecordEviction(tier string, count int) {
	if count <= 0 {
		return
	}
	switch tier {
	case types.TierLocal:
		t.localEvictions.Add(int64(count))
	case types.TierRemote:
		t.remoteEvictions.Add(int64(count))
	}
}

func (t *Tracker) RecordExpired(tier string, count int) {
	if count > 0 {
		t.expiredRemoved.Add(int64(count))
	}
}

func (t *Tracker) RecordNormalized(tier string, count int) {
	if count > 0 {
		t.normalizedEntries.Add(int64(count))
	}
}

func (t *Tracker) RecordError(tier string, operation string, err error) {
	t.errorCount.Add(1)
}

func (t *Tracker) RecordMaintenance(duration time.Duration, err error) {
	t.maintenanceRuns.Add(1)
	if err != nil {
		t.maintenanceFailures.Add(1)
	}
}

func (t *Tracker) RecordCircuitBreakerStateChange(from, to string) {
	t.circuitState.Store(to)
}

// recordLatency adds a latency measurement using a circular buffer.
func (t *Tracker) recordLatency(latency time.Duration) {
	t.latencyMu.Lock()
	t.latencyBuffer[t.latencyIndex] = latency
	t.latencyIndex = (t.latencyIndex + 1) % len(t.latencyBuffer)
	if t.latencyCount < len(t.latencyBuffer) {
		t.latencyCount++
	}
	t.latencyMu.Unlock()
}

// Snapshot returns the current counters and latency percentiles.
func (t *Tracker) Snapshot() *types.PerformanceMetrics {
	t.latencyMu.RLock()
	count := t.latencyCount
	latencyCopy := make([]time.Duration, count)
	if count > 0 {
		if count < len(t.latencyBuffer) {
			copy(latencyCopy, t.latencyBuffer[:count])
		} else {
			// oldest sample sits at latencyIndex once the buffer wrapped
			firstPart := len(t.latencyBuffer) - t.latencyIndex
			copy(latencyCopy[:firstPart], t.latencyBuffer[t.latencyIndex:])
			copy(latencyCopy[firstPart:], t.latencyBuffer[:t.latencyIndex])
		}
	}
	t.latencyMu.RUnlock()

	snapshot := &types.PerformanceMetrics{
		Timestamp:           t.now(),
		TotalRequests:       t.totalRequests.Load(),
		LocalHits:           t.localHits.Load(),
		RemoteHits:          t.remoteHits.Load(),
		Misses:              t.misses.Load(),
		Writes:              t.writes.Load(),
		CompressedWrites:    t.compressedWrites.Load(),
		BytesWritten:        t.bytesWritten.Load(),
		LocalEvictions:      t.localEvictions.Load(),
		RemoteEvictions:     t.remoteEvictions.Load(),
		ExpiredRemoved:      t.expiredRemoved.Load(),
		NormalizedEntries:   t.normalizedEntries.Load(),
		MaintenanceRuns:     t.maintenanceRuns.Load(),
		MaintenanceFailures: t.maintenanceFailures.Load(),
		ErrorCount:          t.errorCount.Load(),
		CircuitBreakerState: t.circuitState.Load().(string),
	}

	if len(latencyCopy) > 0 {
		slices.Sort(latencyCopy)
		snapshot.AvgLatencyMs = toMillis(avgDuration(latencyCopy))
		snapshot.P50LatencyMs = toMillis(percentile(latencyCopy, 50))
		snapshot.P95LatencyMs = toMillis(percentile(latencyCopy, 95))
		snapshot.P99LatencyMs = toMillis(percentile(latencyCopy, 99))
	}

	return snapshot
}

// Restore adds the counters of a snapshot persisted by an earlier process.
// Latencies are not restored.
func (t *Tracker) Restore(prev *types.PerformanceMetrics) {
	if prev == nil {
		return
	}
	t.totalRequests.Add(prev.TotalRequests)
	t.localHits.Add(prev.LocalHits)
	t.remoteHits.Add(prev.RemoteHits)
	t.misses.Add(prev.Misses)
	t.writes.Add(prev.Writes)
	t.compressedWrites.Add(prev.CompressedWrites)
	t.bytesWritten.Add(prev.BytesWritten)
	t.localEvictions.Add(prev.LocalEvictions)
	t.remoteEvictions.Add(prev.RemoteEvictions)
	t.expiredRemoved.Add(prev.ExpiredRemoved)
	t.normalizedEntries.Add(prev.NormalizedEntries)
	t.maintenanceRuns.Add(prev.MaintenanceRuns)
	t.maintenanceFailures.Add(prev.MaintenanceFailures)
	t.errorCount.Add(prev.ErrorCount)
}

// Reset clears all metrics.
func (t *Tracker) Reset() {
	for _, c := range []*atomic.Int64{
		&t.totalRequests, &t.localHits, &t.remoteHits, &t.misses,
		&t.writes, &t.compressedWrites, &t.bytesWritten,
		&t.localEvictions, &t.remoteEvictions, &t.expiredRemoved, &t.normalizedEntries,
		&t.maintenanceRuns, &t.maintenanceFailures, &t.errorCount,
	} {
		c.Store(0)
	}
	t.circuitState.Store("closed")

	t.latencyMu.Lock()
	t.latencyIndex = 0
	t.latencyCount = 0
	t.latencyMu.Unlock()
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func avgDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}

var _ types.MetricsRecorder = (*Tracker)(nil)
