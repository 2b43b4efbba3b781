package types

import (
	"context"
	"time"
)

type StoreInfo interface {
	Name() string
	IsAvailable() bool
}

// BlobStore is the persisted key/value store backing the local tier. Values
// are read and written wholesale; a missing key returns ErrNotFound.
type BlobStore interface {
	StoreInfo
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type RemoteReader interface {
	// FindLatest returns the most recently created row for (userID, barcode),
	// or ErrNotFound.
	FindLatest(ctx context.Context, userID, barcode string) (*RemoteEntry, error)
	Count(ctx context.Context, userID string) (int64, error)
	// OldestIDs returns up to limit row IDs ordered by created_at ascending.
	OldestIDs(ctx context.Context, userID string, limit int) ([]string, error)
	List(ctx context.Context, userID string) ([]RemoteEntry, error)
}

type RemoteWriter interface {
	Insert(ctx context.Context, entry *RemoteEntry) error
	Update(ctx context.Context, entry *RemoteEntry) error
	Delete(ctx context.Context, userID, id string) error
	DeleteExpired(ctx context.Context, userID string, now time.Time) (int64, error)
	DeleteAll(ctx context.Context, userID string) (int64, error)
}

// RemoteStore is the per-user remote table of cache entries. Every method
// returns ErrUnauthenticated when userID is empty.
type RemoteStore interface {
	StoreInfo
	RemoteReader
	RemoteWriter
	Ping(ctx context.Context) error
	Close() error
}

type MetricsRecorder interface {
	RecordHit(tier string, latency time.Duration)
	RecordMiss(latency time.Duration)
	RecordWrite(tier string, size int, compressed bool, latency time.Duration)
	RecordEviction(tier string, count int)
	RecordExpired(tier string, count int)
	RecordNormalized(tier string, count int)
	RecordError(tier string, operation string, err error)
	RecordMaintenance(duration time.Duration, err error)
	RecordCircuitBreakerStateChange(from, to string)
}

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
