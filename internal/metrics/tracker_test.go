package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LavishGent/scancache/internal/types"
)

func TestNewTracker(t *testing.T) {
	tracker := NewTracker()

	snapshot := tracker.Snapshot()
	if snapshot.TotalRequests != 0 {
		t.Errorf("initial TotalRequests = %d, want 0", snapshot.TotalRequests)
	}
	if snapshot.CircuitBreakerState != "closed" {
		t.Errorf("initial CircuitBreakerState = %q, want closed", snapshot.CircuitBreakerState)
	}
}

func TestTrackerLookups(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordHit(types.TierLocal, time.Millisecond)
	tracker.RecordHit(types.TierLocal, time.Millisecond)
	tracker.RecordHit(types.TierRemote, time.Millisecond)
	tracker.RecordMiss(time.Millisecond)

	s := tracker.Snapshot()
	if s.LocalHits != 2 {
		t.Errorf("LocalHits = %d, want 2", s.LocalHits)
	}
	if s.RemoteHits != 1 {
		t.Errorf("RemoteHits = %d, want 1", s.RemoteHits)
	}
	if s.Misses != 1 {
		t.Errorf("Misses = %d, want 1", s.Misses)
	}
	if s.TotalRequests != 4 {
		t.Errorf("TotalRequests = %d, want 4", s.TotalRequests)
	}
	if got := s.HitRate(); got != 0.75 {
		t.Errorf("HitRate() = %v, want 0.75", got)
	}
	if got := s.LocalHitRate(); got != 0.5 {
		t.Errorf("LocalHitRate() = %v, want 0.5", got)
	}
}

func TestTrackerWritesAndMaintenance(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordWrite(types.TierRemote, 2048, true, time.Millisecond)
	tracker.RecordWrite(types.TierLocal, 100, false, time.Millisecond)
	tracker.RecordEviction(types.TierLocal, 2)
	tracker.RecordEviction(types.TierRemote, 5)
	tracker.RecordEviction(types.TierRemote, -1)
	tracker.RecordExpired(types.TierLocal, 3)
	tracker.RecordNormalized(types.TierRemote, 4)
	tracker.RecordError(types.TierRemote, "Insert", errors.New("connection refused"))
	tracker.RecordMaintenance(time.Second, nil)
	tracker.RecordMaintenance(time.Second, errors.New("step failed"))

	s := tracker.Snapshot()
	if s.Writes != 2 || s.CompressedWrites != 1 || s.BytesWritten != 2148 {
		t.Errorf("writes = %d/%d/%d, want 2/1/2148", s.Writes, s.CompressedWrites, s.BytesWritten)
	}
	if got := s.CompressionRatio(); got != 0.5 {
		t.Errorf("CompressionRatio() = %v, want 0.5", got)
	}
	if s.LocalEvictions != 2 || s.RemoteEvictions != 5 {
		t.Errorf("evictions = %d/%d, want 2/5", s.LocalEvictions, s.RemoteEvictions)
	}
	if s.ExpiredRemoved != 3 {
		t.Errorf("ExpiredRemoved = %d, want 3", s.ExpiredRemoved)
	}
	if s.NormalizedEntries != 4 {
		t.Errorf("NormalizedEntries = %d, want 4", s.NormalizedEntries)
	}
	if s.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", s.ErrorCount)
	}
	if s.MaintenanceRuns != 2 || s.MaintenanceFailures != 1 {
		t.Errorf("maintenance = %d/%d, want 2/1", s.MaintenanceRuns, s.MaintenanceFailures)
	}
}

func TestTrackerCircuitState(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordCircuitBreakerStateChange("closed", "open")

	if got := tracker.Snapshot().CircuitBreakerState; got != "open" {
		t.Errorf("CircuitBreakerState = %q, want open", got)
	}
}

func TestTrackerLatencyPercentiles(t *testing.T) {
	tracker := NewTracker()

	for i := 1; i <= 10; i++ {
		tracker.RecordHit(types.TierLocal, time.Duration(i*10)*time.Millisecond)
	}

	s := tracker.Snapshot()
	if s.AvgLatencyMs != 55 {
		t.Errorf("AvgLatencyMs = %v, want 55", s.AvgLatencyMs)
	}
	if s.P50LatencyMs != 50 {
		t.Errorf("P50LatencyMs = %v, want 50", s.P50LatencyMs)
	}
	if s.P95LatencyMs != 90 {
		t.Errorf("P95LatencyMs = %v, want 90", s.P95LatencyMs)
	}
	if s.P99LatencyMs != 90 {
		t.Errorf("P99LatencyMs = %v, want 90", s.P99LatencyMs)
	}
}

func TestTrackerLatencyCircularBuffer(t *testing.T) {
	tracker := NewTracker()

	for i := 0; i < defaultLatencyBufferSize+50; i++ {
		tracker.RecordMiss(time.Millisecond)
	}

	tracker.latencyMu.RLock()
	count := tracker.latencyCount
	tracker.latencyMu.RUnlock()

	if count != defaultLatencyBufferSize {
		t.Errorf("latency count = %d, want %d", count, defaultLatencyBufferSize)
	}
	if s := tracker.Snapshot(); s.AvgLatencyMs != 1 {
		t.Errorf("AvgLatencyMs = %v, want 1", s.AvgLatencyMs)
	}
}

func TestTrackerRestore(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordHit(types.TierLocal, time.Millisecond)

	tracker.Restore(&types.PerformanceMetrics{
		TotalRequests:   10,
		LocalHits:       6,
		Misses:          4,
		Writes:          3,
		MaintenanceRuns: 2,
		AvgLatencyMs:    999,
	})
	tracker.Restore(nil)

	s := tracker.Snapshot()
	if s.TotalRequests != 11 || s.LocalHits != 7 || s.Misses != 4 {
		t.Errorf("restored lookups = %d/%d/%d, want 11/7/4", s.TotalRequests, s.LocalHits, s.Misses)
	}
	if s.Writes != 3 || s.MaintenanceRuns != 2 {
		t.Errorf("restored writes/runs = %d/%d, want 3/2", s.Writes, s.MaintenanceRuns)
	}
	if s.AvgLatencyMs != 1 {
		t.Errorf("AvgLatencyMs = %v, want 1 (latencies are not restored)", s.AvgLatencyMs)
	}
}

func TestTrackerReset(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordHit(types.TierLocal, 10*time.Millisecond)
	tracker.RecordMiss(20 * time.Millisecond)
	tracker.RecordError(types.TierRemote, "FindLatest", errors.New("error"))
	tracker.RecordCircuitBreakerStateChange("closed", "open")

	tracker.Reset()

	s := tracker.Snapshot()
	if s.TotalRequests != 0 || s.LocalHits != 0 || s.ErrorCount != 0 {
		t.Errorf("after reset = %+v, want zero counters", s)
	}
	if s.AvgLatencyMs != 0 {
		t.Errorf("after reset AvgLatencyMs = %v, want 0", s.AvgLatencyMs)
	}
	if s.CircuitBreakerState != "closed" {
		t.Errorf("after reset CircuitBreakerState = %q, want closed", s.CircuitBreakerState)
	}
}

func TestTrackerConcurrency(t *testing.T) {
	tracker := NewTracker()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(4)
		go func() {
			defer wg.Done()
			tracker.RecordHit(types.TierLocal, time.Millisecond)
		}()
		go func() {
			defer wg.Done()
			tracker.RecordMiss(time.Millisecond)
		}()
		go func() {
			defer wg.Done()
			tracker.RecordWrite(types.TierRemote, 10, false, time.Millisecond)
		}()
		go func() {
			defer wg.Done()
			_ = tracker.Snapshot()
		}()
	}
	wg.Wait()

	s := tracker.Snapshot()
	if s.TotalRequests != 200 {
		t.Errorf("TotalRequests = %d, want 200", s.TotalRequests)
	}
	if s.Writes != 100 {
		t.Errorf("Writes = %d, want 100", s.Writes)
	}
}
