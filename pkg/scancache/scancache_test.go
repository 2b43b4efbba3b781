package scancache_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/scancache/pkg/scancache"
)

func newTestCache(t *testing.T, opts ...scancache.ManagerOption) scancache.Cache {
	t.Helper()
	c, err := scancache.NewFromConfig(scancache.TestConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.CacheBarcode(ctx, "alice", &scancache.BarcodeDraft{
		Barcode:         "7891000100103",
		ProductData:     scancache.ProductData{Name: "Leite Condensado", Brand: "Moça"},
		Source:          scancache.ParseSource("cosmos"),
		ConfidenceScore: 0.9,
	})
	require.NoError(t, err)

	rec, err := c.GetCachedBarcode(ctx, "alice", "789-1000-100103")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Moça", rec.ProductData.Brand)
	assert.Equal(t, scancache.SourceCosmos, rec.Source)

	stats, err := c.GetCacheStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.LocalEntries)
}

func TestCache_ErrorsAreExported(t *testing.T) {
	c := newTestCache(t)

	_, err := c.GetCachedBarcode(context.Background(), "", "7891000100103")
	assert.True(t, scancache.IsUnauthenticated(err))
	assert.ErrorIs(t, err, scancache.ErrUnauthenticated)
	assert.False(t, scancache.IsRetryable(err))

	_, err = c.GetCachedBarcode(context.Background(), "alice", "")
	assert.True(t, scancache.IsInvalidBarcode(err))
}

func TestCache_LocalOnly(t *testing.T) {
	c := newTestCache(t, scancache.WithoutRemote())

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scancache.HealthStatusDegraded, health.Status)
}

func TestCache_PrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := scancache.TestConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.PublishInterval = 0
	cfg.Metrics.Prometheus.Enabled = true
	cfg.Metrics.Prometheus.Namespace = "scancache"

	c, err := scancache.NewFromConfig(cfg, scancache.WithPrometheusRegisterer(reg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.GetCachedBarcode(context.Background(), "alice", "7891000100103")
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["scancache_misses_total"], "gathered %v", names)
}

func TestBarcodeHelpers(t *testing.T) {
	assert.Equal(t, "0036000291452", scancache.NormalizeBarcode("036000291452"))
	assert.NoError(t, scancache.ValidateBarcode("0036000291452"))
	assert.Equal(t, "EAN-13", scancache.DetectSymbology("789 1000 100103").String())
}

func BenchmarkCache_GetCachedBarcode(b *testing.B) {
	c, err := scancache.NewFromConfig(scancache.TestConfig())
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	if _, err := c.CacheBarcode(ctx, "bench", &scancache.BarcodeDraft{
		Barcode:     "7891000100103",
		ProductData: scancache.ProductData{Name: "Leite Condensado"},
	}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.GetCachedBarcode(ctx, "bench", "7891000100103")
	}
}

func BenchmarkCache_GetOrFetchParallel(b *testing.B) {
	c, err := scancache.NewFromConfig(scancache.TestConfig())
	if err != nil {
		b.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	fetch := func(ctx context.Context, code string) (*scancache.BarcodeDraft, error) {
		return &scancache.BarcodeDraft{Barcode: code, ProductData: scancache.ProductData{Name: "Arroz"}}, nil
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = c.GetOrFetch(ctx, "bench", "7891000100103", fetch)
		}
	})
}
