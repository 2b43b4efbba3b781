package cache

import (
	"context"
	"time"

	"github.com/LavishGent/scancache/internal/types"
)

// DisabledBlobStore is a no-op local backend. Every read misses.
type DisabledBlobStore struct{}

// NewDisabledBlobStore creates a new disabled blob store.
func NewDisabledBlobStore() *DisabledBlobStore {
	return &DisabledBlobStore{}
}

// Name returns the backend name.
func (s *DisabledBlobStore) Name() string { return "local-disabled" }

// IsAvailable returns false as this store is disabled.
func (s *DisabledBlobStore) IsAvailable() bool { return false }

// Close does nothing as this store is disabled.
func (s *DisabledBlobStore) Close() error { return nil }

// Get returns ErrNotFound as this store is disabled.
func (s *DisabledBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, types.ErrNotFound
}

// Set does nothing as this store is disabled.
func (s *DisabledBlobStore) Set(ctx context.Context, key string, value []byte) error { return nil }

// Delete does nothing as this store is disabled.
func (s *DisabledBlobStore) Delete(ctx context.Context, key string) error { return nil }

// DisabledRemoteStore is a no-op remote backend. Lookups miss and writes are
// dropped, which leaves the manager running on the local tier alone.
type DisabledRemoteStore struct{}

// NewDisabledRemoteStore creates a new disabled remote store.
func NewDisabledRemoteStore() *DisabledRemoteStore {
	return &DisabledRemoteStore{}
}

// Name returns the backend name.
func (s *DisabledRemoteStore) Name() string { return "remote-disabled" }

// IsAvailable returns false as this store is disabled.
func (s *DisabledRemoteStore) IsAvailable() bool { return false }

// Close does nothing as this store is disabled.
func (s *DisabledRemoteStore) Close() error { return nil }

// Ping does nothing as this store is disabled.
func (s *DisabledRemoteStore) Ping(ctx context.Context) error { return nil }

// FindLatest returns ErrNotFound as this store is disabled.
func (s *DisabledRemoteStore) FindLatest(ctx context.Context, userID, barcode string) (*types.RemoteEntry, error) {
	return nil, types.ErrNotFound
}

// Count returns 0 as this store is disabled.
func (s *DisabledRemoteStore) Count(ctx context.Context, userID string) (int64, error) { return 0, nil }

// OldestIDs returns nothing as this store is disabled.
func (s *DisabledRemoteStore) OldestIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	return nil, nil
}

// List returns nothing as this store is disabled.
func (s *DisabledRemoteStore) List(ctx context.Context, userID string) ([]types.RemoteEntry, error) {
	return nil, nil
}

// Insert does nothing as this store is disabled.
func (s *DisabledRemoteStore) Insert(ctx context.Context, entry *types.RemoteEntry) error { return nil }

// Update does nothing as this store is disabled.
func (s *DisabledRemoteStore) Update(ctx context.Context, entry *types.RemoteEntry) error { return nil }

// Delete does nothing as this store is disabled.
func (s *DisabledRemoteStore) Delete(ctx context.Context, userID, id string) error { return nil }

// DeleteExpired does nothing as this store is disabled.
func (s *DisabledRemoteStore) DeleteExpired(ctx context.Context, userID string, now time.Time) (int64, error) {
	return 0, nil
}

// DeleteAll does nothing as this store is disabled.
func (s *DisabledRemoteStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

var _ types.BlobStore = (*DisabledBlobStore)(nil)
var _ types.RemoteStore = (*DisabledRemoteStore)(nil)
