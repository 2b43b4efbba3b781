package datadog

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/LavishGent/scancache/internal/config"
	"github.com/LavishGent/scancache/internal/metrics"
	"github.com/LavishGent/scancache/internal/types"
)

func TestNewPublisherDisabled(t *testing.T) {
	pub, err := NewPublisher(&config.DataDogConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	if _, ok := pub.(*metrics.NoOpPublisher); !ok {
		t.Errorf("NewPublisher() = %T, want *metrics.NoOpPublisher", pub)
	}
}

func TestPublisherSendsToAgent(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen on UDP: %v", err)
	}
	defer conn.Close()

	port := conn.LocalAddr().(*net.UDPAddr).Port
	cfg := &config.DataDogConfig{
		Enabled:   true,
		AgentHost: "127.0.0.1",
		Port:      port,
		Prefix:    "scancache",
		Tags:      []string{"env:test"},
	}

	pub, err := NewPublisher(cfg, nil, statsd.WithoutClientSideAggregation(), statsd.WithoutTelemetry())
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}

	pub.Incr("cache.hit", "tier:local")
	pub.PublishSnapshot(&types.PerformanceMetrics{TotalRequests: 4, LocalHits: 3})
	if err := pub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var received strings.Builder
	buf := make([]byte, 65536)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			break
		}
		received.Write(buf[:n])
		received.WriteByte('\n')
	}

	out := received.String()
	if !strings.Contains(out, "scancache.cache.hit:1|c") {
		t.Errorf("missing counter packet in %q", out)
	}
	if !strings.Contains(out, "scancache.performance.hit_ratio:0.75|g") {
		t.Errorf("missing hit ratio gauge in %q", out)
	}
	if !strings.Contains(out, "env:test") {
		t.Errorf("missing base tag in %q", out)
	}
}
