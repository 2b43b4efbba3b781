package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/allegro/bigcache/v3"

	"github.com/LavishGent/scancache/internal/config"
	"github.com/LavishGent/scancache/internal/types"
)

// MemoryBlobStore keeps local tier blobs in process memory using BigCache.
// Contents do not survive a restart.
type MemoryBlobStore struct {
	cache  *bigcache.BigCache
	config config.MemoryConfig
	logger *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64

	closed atomic.Bool
}

// NewMemoryBlobStore creates a new in-memory blob store.
func NewMemoryBlobStore(cfg config.MemoryConfig, logger *slog.Logger) (*MemoryBlobStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &MemoryBlobStore{
		config: cfg,
		logger: logger.With("component", "local-memory"),
	}

	shards := cfg.Shards
	if shards <= 0 {
		shards = 16
	}

	bcConfig := bigcache.Config{
		Shards:             shards,
		LifeWindow:         cfg.LifeWindow,
		CleanWindow:        cfg.CleanupInterval,
		MaxEntriesInWindow: 1024,
		MaxEntrySize:       cfg.MaxEntrySize,
		HardMaxCacheSize:   cfg.MaxSizeMB,
		Verbose:            false,
		Logger:             &bigcacheLogger{logger: s.logger},
		OnRemoveWithReason: func(key string, entry []byte, reason bigcache.RemoveReason) {
			if reason == bigcache.NoSpace || reason == bigcache.Expired {
				s.evictions.Add(1)
			}
		},
	}

	bc, err := bigcache.New(context.Background(), bcConfig)
	if err != nil {
		return nil, err
	}

	s.cache = bc
	return s, nil
}

// Name returns the backend name.
func (s *MemoryBlobStore) Name() string {
	return "memory"
}

// IsAvailable returns true if the store is not closed.
func (s *MemoryBlobStore) IsAvailable() bool {
	return !s.closed.Load()
}

// Get returns the blob stored under key, or ErrNotFound.
func (s *MemoryBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, types.ErrClosed
	}

	data, err := s.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			s.misses.Add(1)
			return nil, types.ErrNotFound
		}
		return nil, types.StorageError("Get", key, err)
	}

	s.hits.Add(1)
	return data, nil
}

// Set replaces the blob stored under key.
func (s *MemoryBlobStore) Set(ctx context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	if err := s.cache.Set(key, value); err != nil {
		return types.StorageError("Set", key, err)
	}

	s.sets.Add(1)
	return nil
}

// Delete removes the blob stored under key. Missing keys are not an error.
func (s *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	if err := s.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return types.StorageError("Delete", key, err)
	}

	s.deletes.Add(1)
	return nil
}

// Close releases the underlying cache.
func (s *MemoryBlobStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.cache.Close()
}

// EntryCount returns the number of blobs held.
func (s *MemoryBlobStore) EntryCount() int {
	return s.cache.Len()
}

// Evictions returns how many blobs BigCache dropped for space or age.
func (s *MemoryBlobStore) Evictions() int64 {
	return s.evictions.Load()
}

// HitRatio returns the fraction of Gets that found a blob.
func (s *MemoryBlobStore) HitRatio() float64 {
	hits := s.hits.Load()
	total := hits + s.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

type bigcacheLogger struct {
	logger *slog.Logger
}

func (l *bigcacheLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf("bigcache: "+format, args...))
}

var _ types.BlobStore = (*MemoryBlobStore)(nil)
