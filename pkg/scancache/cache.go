package scancache

import (
	"context"

	"github.com/LavishGent/scancache/internal/cache"
)

// FetchFunc looks a barcode up in the external product catalogs. Returning
// a nil draft and nil error means the product is unknown.
type FetchFunc = cache.FetchFunc

// Cache is the barcode lookup cache. Every per-user operation takes the
// authenticated user's ID.
type Cache interface {
	GetCachedBarcode(ctx context.Context, userID, barcode string) (*CachedBarcode, error)
	CacheBarcode(ctx context.Context, userID string, draft *BarcodeDraft) (*CachedBarcode, error)
	GetOrFetch(ctx context.Context, userID, barcode string, fetch FetchFunc) (*CachedBarcode, error)
	RemoveCachedBarcode(ctx context.Context, userID, barcode string) (bool, error)
	ClearCache(ctx context.Context, userID string) error
	GetCacheStats(ctx context.Context, userID string) (*CacheStats, error)
	RunMaintenance(ctx context.Context, userID string) (*MaintenanceReport, error)
	GetPerformanceMetrics() *PerformanceMetrics
	Health(ctx context.Context) (*HealthMetrics, error)
	Close() error
}

var _ Cache = (*cache.Manager)(nil)
