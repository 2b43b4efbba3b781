// Package prometheus exposes cache metrics as Prometheus collectors.
package prometheus

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/LavishGent/scancache/internal/types"
)

// Recorder implements types.MetricsRecorder with Prometheus collectors
// registered on the given registerer.
type Recorder struct {
	hits          *prom.CounterVec
	misses        prom.Counter
	lookupLatency *prom.HistogramVec

	writes       *prom.CounterVec
	writeBytes   prom.Histogram
	writeLatency prom.Histogram

	evictions  *prom.CounterVec
	expired    *prom.CounterVec
	normalized *prom.CounterVec
	errors     *prom.CounterVec

	maintenanceRuns     *prom.CounterVec
	maintenanceDuration prom.Histogram

	circuitState       prom.Gauge
	circuitTransitions *prom.CounterVec
}

// NewRecorder registers the collectors under namespace. A nil registerer
// uses prometheus.DefaultRegisterer.
func NewRecorder(namespace string, reg prom.Registerer) *Recorder {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		hits: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "hits_total",
			Help:      "Barcode lookups served from cache, by tier",
		}, []string{"tier"}),
		misses: f.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "misses_total",
			Help:      "Barcode lookups that missed both tiers",
		}),
		lookupLatency: f.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "Barcode lookup latency in seconds",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
		writes: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Cache writes, by tier and whether the payload was compacted",
		}, []string{"tier", "compressed"}),
		writeBytes: f.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "write_payload_bytes",
			Help:      "Stored payload size in bytes",
			Buckets:   prom.ExponentialBuckets(128, 2, 10),
		}),
		writeLatency: f.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "write_duration_seconds",
			Help:      "Cache write latency in seconds",
			Buckets:   prom.DefBuckets,
		}),
		evictions: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Entries evicted to respect size bounds, by tier",
		}, []string{"tier"}),
		expired: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "expired_total",
			Help:      "Expired entries removed, by tier",
		}, []string{"tier"}),
		normalized: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "normalized_total",
			Help:      "Legacy entries rewritten with flat brand and category, by tier",
		}, []string{"tier"}),
		errors: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Tier operation failures",
		}, []string{"tier", "operation"}),
		maintenanceRuns: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "maintenance_runs_total",
			Help:      "Maintenance passes, by outcome",
		}, []string{"status"}),
		maintenanceDuration: f.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "maintenance_duration_seconds",
			Help:      "Maintenance pass duration in seconds",
			Buckets:   prom.DefBuckets,
		}),
		circuitState: f.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_state",
			Help:      "Remote tier circuit breaker state (0 closed, 1 open, 2 half-open)",
		}),
		circuitTransitions: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_transitions_total",
			Help:      "Remote tier circuit breaker transitions, by target state",
		}, []string{"to"}),
	}
}

func (r *Recorder) RecordHit(tier string, latency time.Duration) {
	r.hits.WithLabelValues(tier).Inc()
	r.lookupLatency.WithLabelValues("hit").Observe(latency.Seconds())
}

func (r *Recorder) RecordMiss(latency time.Duration) {
	r.misses.Inc()
	r.lookupLatency.WithLabelValues("miss").Observe(latency.Seconds())
}

func (r *Recorder) RecordWrite(tier string, size int, compressed bool, latency time.Duration) {
	c := "false"
	if compressed {
		c = "true"
	}
	r.writes.WithLabelValues(tier, c).Inc()
	r.writeBytes.Observe(float64(size))
	r.writeLatency.Observe(latency.Seconds())
}

func (r *Recorder) RecordEviction(tier string, count int) {
	if count > 0 {
		r.evictions.WithLabelValues(tier).Add(float64(count))
	}
}

func (r *Recorder) RecordExpired(tier string, count int) {
	if count > 0 {
		r.expired.WithLabelValues(tier).Add(float64(count))
	}
}

func (r *Recorder) RecordNormalized(tier string, count int) {
	if count > 0 {
		r.normalized.WithLabelValues(tier).Add(float64(count))
	}
}

func (r *Recorder) RecordError(tier string, operation string, err error) {
	r.errors.WithLabelValues(tier, operation).Inc()
}

func (r *Recorder) RecordMaintenance(duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.maintenanceRuns.WithLabelValues(status).Inc()
	r.maintenanceDuration.Observe(duration.Seconds())
}

func (r *Recorder) RecordCircuitBreakerStateChange(from, to string) {
	r.circuitTransitions.WithLabelValues(to).Inc()
	switch to {
	case "open":
		r.circuitState.Set(1)
	case "half-open":
		r.circuitState.Set(2)
	default:
		r.circuitState.Set(0)
	}
}

var _ types.MetricsRecorder = (*Recorder)(nil)
