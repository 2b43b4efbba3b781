package metrics

import (
	"time"

	"github.com/LavishGent/scancache/internal/types"
)

// PublishingRecorder forwards each cache event to a Publisher as a
// counter or timing.
type PublishingRecorder struct {
	publisher Publisher
}

func NewPublishingRecorder(publisher Publisher) *PublishingRecorder {
	if publisher == nil {
		publisher = NewNoOpPublisher()
	}
	return &PublishingRecorder{publisher: publisher}
}

func (r *PublishingRecorder) RecordHit(tier string, latency time.Duration) {
	r.publisher.Incr("cache.hit", TierTag(tier))
	r.publisher.Timing("cache.lookup", latency, TierTag(tier), StatusTag("hit"))
}

func (r *PublishingRecorder) RecordMiss(latency time.Duration) {
	r.publisher.Incr("cache.miss")
	r.publisher.Timing("cache.lookup", latency, StatusTag("miss"))
}

func (r *PublishingRecorder) RecordWrite(tier string, size int, compressed bool, latency time.Duration) {
	tags := []string{TierTag(tier), Tag("compressed", boolTag(compressed))}
	r.publisher.Incr("cache.write", tags...)
	r.publisher.Histogram("cache.write.bytes", float64(size), tags...)
	r.publisher.Timing("cache.write", latency, tags...)
}

func (r *PublishingRecorder) RecordEviction(tier string, count int) {
	if count > 0 {
		r.publisher.Count("cache.evicted", int64(count), TierTag(tier))
	}
}

func (r *PublishingRecorder) RecordExpired(tier string, count int) {
	if count > 0 {
		r.publisher.Count("cache.expired", int64(count), TierTag(tier))
	}
}

func (r *PublishingRecorder) RecordNormalized(tier string, count int) {
	if count > 0 {
		r.publisher.Count("cache.normalized", int64(count), TierTag(tier))
	}
}

func (r *PublishingRecorder) RecordError(tier string, operation string, err error) {
	r.publisher.Incr("cache.error", TierTag(tier), OperationTag(operation))
}

func (r *PublishingRecorder) RecordMaintenance(duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.publisher.Timing("maintenance.duration", duration, StatusTag(status))
}

func (r *PublishingRecorder) RecordCircuitBreakerStateChange(from, to string) {
	r.publisher.Incr("circuit.transition", CircuitStateTag(to))
	alert := "info"
	if to == "open" {
		alert = "warning"
	}
	r.publisher.Event("scancache circuit breaker "+to, "remote tier circuit moved from "+from+" to "+to, alert, CircuitStateTag(to))
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

var _ types.MetricsRecorder = (*PublishingRecorder)(nil)
