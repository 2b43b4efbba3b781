// Package datadog provides a DataDog StatsD metrics publisher.
package datadog

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/LavishGent/scancache/internal/config"
	"github.com/LavishGent/scancache/internal/metrics"
	"github.com/LavishGent/scancache/internal/types"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Publisher implements metrics.Publisher using the DataDog StatsD client.
// Configured tags are attached by the client to every metric.
type Publisher struct {
	client *statsd.Client
	logger *slog.Logger
}

// NewPublisher creates a DataDog publisher from config. If DataDog is not
// enabled it returns a metrics.NoOpPublisher instead. Extra statsd options
// are applied after the ones derived from cfg.
func NewPublisher(cfg *config.DataDogConfig, logger *slog.Logger, opts ...statsd.Option) (metrics.Publisher, error) {
	if !cfg.Enabled {
		return metrics.NewNoOpPublisher(), nil
	}

	if logger == nil {
		logger = slog.Default()
	}

	addr := fmt.Sprintf("%s:%d", cfg.AgentHost, cfg.Port)

	options := append([]statsd.Option{
		statsd.WithNamespace(cfg.Prefix + "."),
		statsd.WithTags(cfg.Tags),
	}, opts...)

	client, err := statsd.New(addr, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create statsd client: %w", err)
	}

	logger.Info("DataDog publisher initialized",
		"address", addr,
		"prefix", cfg.Prefix,
		"tags", cfg.Tags,
	)

	return &Publisher{
		client: client,
		logger: logger.With("component", "datadog"),
	}, nil
}

func (p *Publisher) Gauge(name string, value float64, tags ...string) {
	if err := p.client.Gauge(name, value, tags, 1); err != nil {
		p.logger.Debug("Failed to send gauge metric", "name", name, "error", err)
	}
}

func (p *Publisher) Incr(name string, tags ...string) {
	if err := p.client.Incr(name, tags, 1); err != nil {
		p.logger.Debug("Failed to send incr metric", "name", name, "error", err)
	}
}

func (p *Publisher) Count(name string, value int64, tags ...string) {
	if err := p.client.Count(name, value, tags, 1); err != nil {
		p.logger.Debug("Failed to send count metric", "name", name, "error", err)
	}
}

func (p *Publisher) Histogram(name string, value float64, tags ...string) {
	if err := p.client.Histogram(name, value, tags, 1); err != nil {
		p.logger.Debug("Failed to send histogram metric", "name", name, "error", err)
	}
}

func (p *Publisher) Timing(name string, duration time.Duration, tags ...string) {
	if err := p.client.Timing(name, duration, tags, 1); err != nil {
		p.logger.Debug("Failed to send timing metric", "name", name, "error", err)
	}
}

func (p *Publisher) Event(title, text, alertType string, tags ...string) {
	event := &statsd.Event{
		Title:     title,
		Text:      text,
		AlertType: statsd.EventAlertType(alertType),
		Tags:      tags,
	}
	if err := p.client.Event(event); err != nil {
		p.logger.Debug("Failed to send event", "title", title, "error", err)
	}
}

// PublishSnapshot sends every snapshot gauge.
func (p *Publisher) PublishSnapshot(m *types.PerformanceMetrics) {
	for _, g := range metrics.SnapshotGauges(m) {
		p.Gauge(g.Name, g.Value)
	}
}

// Close flushes and releases the statsd client.
func (p *Publisher) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

var _ metrics.Publisher = (*Publisher)(nil)
