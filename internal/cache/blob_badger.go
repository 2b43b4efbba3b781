package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/LavishGent/scancache/internal/config"
	"github.com/LavishGent/scancache/internal/types"
)

// BadgerBlobStore persists local tier blobs on disk with BadgerDB, so a
// device keeps its scan history across restarts.
type BadgerBlobStore struct {
	db     *badger.DB
	logger *slog.Logger
	closed atomic.Bool
}

// NewBadgerBlobStore opens (or creates) the database described by cfg.
func NewBadgerBlobStore(cfg config.BadgerConfig, logger *slog.Logger) (*BadgerBlobStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "local-badger")

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}

	return &BadgerBlobStore{db: db, logger: logger}, nil
}

// Name returns the backend name.
func (s *BadgerBlobStore) Name() string {
	return "badger"
}

// IsAvailable returns true if the database is open.
func (s *BadgerBlobStore) IsAvailable() bool {
	return !s.closed.Load() && !s.db.IsClosed()
}

// Get returns the blob stored under key, or ErrNotFound.
func (s *BadgerBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, types.ErrClosed
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, types.StorageError("Get", key, err)
	}
	return data, nil
}

// Set replaces the blob stored under key.
func (s *BadgerBlobStore) Set(ctx context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return types.StorageError("Set", key, err)
	}
	return nil
}

// Delete removes the blob stored under key. Missing keys are not an error.
func (s *BadgerBlobStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return types.ErrClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return types.StorageError("Delete", key, err)
	}
	return nil
}

// Close closes the database.
func (s *BadgerBlobStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// badgerLogger routes BadgerDB's logger into slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf("badger: "+format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf("badger: "+format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf("badger: "+format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf("badger: "+format, args...))
}

var _ types.BlobStore = (*BadgerBlobStore)(nil)
