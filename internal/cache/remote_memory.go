package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/scancache/internal/types"
)

// MemoryRemoteStore is an in-process stand-in for the remote table, used by
// tests and single-node deployments without a database.
type MemoryRemoteStore struct {
	mu     sync.RWMutex
	rows   map[string][]types.RemoteEntry
	closed atomic.Bool
}

// NewMemoryRemoteStore creates an empty store.
func NewMemoryRemoteStore() *MemoryRemoteStore {
	return &MemoryRemoteStore{rows: make(map[string][]types.RemoteEntry)}
}

func (s *MemoryRemoteStore) Name() string      { return "memory" }
func (s *MemoryRemoteStore) IsAvailable() bool { return !s.closed.Load() }

func (s *MemoryRemoteStore) check(userID string) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	if userID == "" {
		return types.ErrUnauthenticated
	}
	return nil
}

func (s *MemoryRemoteStore) FindLatest(ctx context.Context, userID, barcode string) (*types.RemoteEntry, error) {
	if err := s.check(userID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *types.RemoteEntry
	for i := range s.rows[userID] {
		row := &s.rows[userID][i]
		if row.Barcode != barcode {
			continue
		}
		if latest == nil || !row.CreatedAt.Before(latest.CreatedAt) {
			latest = row
		}
	}
	if latest == nil {
		return nil, types.ErrNotFound
	}
	found := cloneRemote(*latest)
	return &found, nil
}

func (s *MemoryRemoteStore) Count(ctx context.Context, userID string) (int64, error) {
	if err := s.check(userID); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rows[userID])), nil
}

func (s *MemoryRemoteStore) OldestIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	if err := s.check(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	rows := append([]types.RemoteEntry(nil), s.rows[userID]...)
	s.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

func (s *MemoryRemoteStore) List(ctx context.Context, userID string) ([]types.RemoteEntry, error) {
	if err := s.check(userID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.RemoteEntry, len(s.rows[userID]))
	for i, r := range s.rows[userID] {
		out[i] = cloneRemote(r)
	}
	return out, nil
}

func (s *MemoryRemoteStore) Insert(ctx context.Context, entry *types.RemoteEntry) error {
	if err := s.check(entry.UserID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[entry.UserID] = append(s.rows[entry.UserID], cloneRemote(*entry))
	return nil
}

func (s *MemoryRemoteStore) Update(ctx context.Context, entry *types.RemoteEntry) error {
	if err := s.check(entry.UserID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rows[entry.UserID] {
		if s.rows[entry.UserID][i].ID == entry.ID {
			s.rows[entry.UserID][i] = cloneRemote(*entry)
			return nil
		}
	}
	return types.ErrNotFound
}

func (s *MemoryRemoteStore) Delete(ctx context.Context, userID, id string) error {
	if err := s.check(userID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.rows[userID]
	for i := range rows {
		if rows[i].ID == id {
			s.rows[userID] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryRemoteStore) DeleteExpired(ctx context.Context, userID string, now time.Time) (int64, error) {
	if err := s.check(userID); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.rows[userID]
	kept := rows[:0]
	for _, r := range rows {
		if r.ExpiresAt.Before(now) {
			continue
		}
		kept = append(kept, r)
	}
	removed := len(rows) - len(kept)
	s.rows[userID] = kept
	return int64(removed), nil
}

func (s *MemoryRemoteStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	if err := s.check(userID); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.rows[userID])
	delete(s.rows, userID)
	return int64(n), nil
}

func (s *MemoryRemoteStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return types.ErrClosed
	}
	return nil
}

func (s *MemoryRemoteStore) Close() error {
	s.closed.Store(true)
	return nil
}

func cloneRemote(e types.RemoteEntry) types.RemoteEntry {
	e.Data = append([]byte(nil), e.Data...)
	return e
}

var _ types.RemoteStore = (*MemoryRemoteStore)(nil)
