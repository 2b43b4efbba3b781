package prometheus

import (
	"errors"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/LavishGent/scancache/internal/types"
)

func counterValue(t *testing.T, c prom.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prom.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestRecorderLookups(t *testing.T) {
	r := NewRecorder("test", prom.NewRegistry())

	r.RecordHit(types.TierLocal, time.Millisecond)
	r.RecordHit(types.TierLocal, time.Millisecond)
	r.RecordHit(types.TierRemote, 5*time.Millisecond)
	r.RecordMiss(10 * time.Millisecond)

	if got := counterValue(t, r.hits.WithLabelValues(types.TierLocal)); got != 2 {
		t.Errorf("local hits = %v, want 2", got)
	}
	if got := counterValue(t, r.hits.WithLabelValues(types.TierRemote)); got != 1 {
		t.Errorf("remote hits = %v, want 1", got)
	}
	if got := counterValue(t, r.misses); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
}

func TestRecorderWritesAndMaintenance(t *testing.T) {
	r := NewRecorder("test", prom.NewRegistry())

	r.RecordWrite(types.TierRemote, 2048, true, time.Millisecond)
	r.RecordWrite(types.TierRemote, 200, false, time.Millisecond)
	r.RecordEviction(types.TierLocal, 3)
	r.RecordEviction(types.TierLocal, 0)
	r.RecordExpired(types.TierRemote, 2)
	r.RecordNormalized(types.TierLocal, 1)
	r.RecordError(types.TierRemote, "Insert", errors.New("boom"))
	r.RecordMaintenance(time.Second, nil)
	r.RecordMaintenance(time.Second, errors.New("step failed"))

	if got := counterValue(t, r.writes.WithLabelValues(types.TierRemote, "true")); got != 1 {
		t.Errorf("compressed writes = %v, want 1", got)
	}
	if got := counterValue(t, r.evictions.WithLabelValues(types.TierLocal)); got != 3 {
		t.Errorf("local evictions = %v, want 3", got)
	}
	if got := counterValue(t, r.expired.WithLabelValues(types.TierRemote)); got != 2 {
		t.Errorf("remote expired = %v, want 2", got)
	}
	if got := counterValue(t, r.normalized.WithLabelValues(types.TierLocal)); got != 1 {
		t.Errorf("local normalized = %v, want 1", got)
	}
	if got := counterValue(t, r.errors.WithLabelValues(types.TierRemote, "Insert")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
	if got := counterValue(t, r.maintenanceRuns.WithLabelValues("error")); got != 1 {
		t.Errorf("failed maintenance runs = %v, want 1", got)
	}
}

func TestRecorderCircuitState(t *testing.T) {
	r := NewRecorder("test", prom.NewRegistry())

	//nolint:govet // Test table - alignment not critical
	tests := []struct {
		to   string
		want float64
	}{
		{"open", 1},
		{"half-open", 2},
		{"closed", 0},
	}
	for _, tt := range tests {
		r.RecordCircuitBreakerStateChange("x", tt.to)
		if got := gaugeValue(t, r.circuitState); got != tt.want {
			t.Errorf("circuit_state after -> %s = %v, want %v", tt.to, got, tt.want)
		}
	}
	if got := counterValue(t, r.circuitTransitions.WithLabelValues("open")); got != 1 {
		t.Errorf("transitions to open = %v, want 1", got)
	}
}

func TestRecorderRegistersUnderNamespace(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRecorder("scancache", reg)
	r.RecordMiss(time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "scancache_misses_total" {
			found = true
		}
	}
	if !found {
		t.Error("scancache_misses_total not registered")
	}
}
