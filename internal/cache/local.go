package cache

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/LavishGent/scancache/internal/config"
	"github.com/LavishGent/scancache/internal/types"
)

// LocalTier keeps each user's entries as one blob in a BlobStore.
//
// Every operation reads the blob, changes it and writes it back under a
// single mutex, so concurrent callers in this process never lose updates.
// A blob that cannot be read or decoded is treated as empty.
type LocalTier struct {
	store      types.BlobStore
	prefix     string
	maxEntries int
	logger     *slog.Logger

	mu sync.Mutex
}

// NewLocalTier creates a local tier over store.
func NewLocalTier(store types.BlobStore, cfg config.LocalConfig, logger *slog.Logger) *LocalTier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalTier{
		store:      store,
		prefix:     cfg.KeyPrefix,
		maxEntries: cfg.MaxEntries,
		logger:     logger.With("component", "local-tier"),
	}
}

// Backend returns the underlying store.
func (t *LocalTier) Backend() types.BlobStore {
	return t.store
}

// MaxEntries returns the per-user entry limit.
func (t *LocalTier) MaxEntries() int {
	return t.maxEntries
}

func (t *LocalTier) entriesKey(userID string) string {
	return t.prefix + ":" + userID
}

func (t *LocalTier) metricsKey() string {
	return t.prefix + "_metrics"
}

func (t *LocalTier) lastCleanupKey() string {
	return t.prefix + "_last_cleanup"
}

// Load returns the user's entries. Storage and decode failures are logged
// and yield no entries.
func (t *LocalTier) Load(ctx context.Context, userID string) []types.LocalEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx, userID)
}

func (t *LocalTier) load(ctx context.Context, userID string) []types.LocalEntry {
	key := t.entriesKey(userID)
	data, err := t.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			t.logger.Warn("local read failed, treating as empty", "key", key, "error", err)
		}
		return nil
	}

	var entries []types.LocalEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.logger.Warn("local blob undecodable, treating as empty", "key", key, "error", err)
		return nil
	}
	return entries
}

// Save writes the user's entries, keeping the most recently accessed
// MaxEntries of them. It returns how many entries were dropped.
func (t *LocalTier) Save(ctx context.Context, userID string, entries []types.LocalEntry) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.save(ctx, userID, entries)
}

func (t *LocalTier) save(ctx context.Context, userID string, entries []types.LocalEntry) (int, error) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastAccessedAt.After(entries[j].LastAccessedAt)
	})

	evicted := 0
	if t.maxEntries > 0 && len(entries) > t.maxEntries {
		evicted = len(entries) - t.maxEntries
		entries = entries[:t.maxEntries]
	}

	key := t.entriesKey(userID)
	data, err := json.Marshal(entries)
	if err != nil {
		return 0, types.StorageError("Save", key, err)
	}
	if err := t.store.Set(ctx, key, data); err != nil {
		return 0, types.StorageError("Save", key, err)
	}
	return evicted, nil
}

// LookupResult describes what Lookup found.
type LookupResult struct {
	Entry   *types.LocalEntry
	Expired bool
}

// Lookup finds the live entry for barcode and applies touch to it before
// saving. An expired match is removed and reported as Expired.
func (t *LocalTier) Lookup(ctx context.Context, userID, barcode string, now time.Time, touch func(*types.LocalEntry)) (LookupResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.load(ctx, userID)
	idx := indexOf(entries, barcode)
	if idx < 0 {
		return LookupResult{}, nil
	}

	if entries[idx].IsExpired(now) {
		entries = append(entries[:idx], entries[idx+1:]...)
		_, err := t.save(ctx, userID, entries)
		return LookupResult{Expired: true}, err
	}

	if touch != nil {
		touch(&entries[idx])
	}
	found := entries[idx]
	_, err := t.save(ctx, userID, entries)
	return LookupResult{Entry: &found}, err
}

// Upsert replaces the entry for entry.Barcode, or adds it. A replaced
// entry keeps its access count and popularity if they were higher. It
// returns how many entries the size bound evicted.
func (t *LocalTier) Upsert(ctx context.Context, userID string, entry types.LocalEntry) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.load(ctx, userID)
	if idx := indexOf(entries, entry.Barcode); idx >= 0 {
		old := entries[idx]
		entry.AccessCount = max(entry.AccessCount, old.AccessCount)
		entry.Popularity = max(entry.Popularity, old.Popularity)
		entries[idx] = entry
	} else {
		entries = append(entries, entry)
	}
	return t.save(ctx, userID, entries)
}

// Remove deletes the entry for barcode and reports whether it existed.
func (t *LocalTier) Remove(ctx context.Context, userID, barcode string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.load(ctx, userID)
	idx := indexOf(entries, barcode)
	if idx < 0 {
		return false, nil
	}
	entries = append(entries[:idx], entries[idx+1:]...)
	_, err := t.save(ctx, userID, entries)
	return err == nil, err
}

// Clear drops every entry of the user and returns how many there were.
func (t *LocalTier) Clear(ctx context.Context, userID string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.load(ctx, userID))
	key := t.entriesKey(userID)
	if err := t.store.Delete(ctx, key); err != nil {
		return 0, types.StorageError("Clear", key, err)
	}
	return n, nil
}

// RemoveExpired drops entries that expired at or before now.
func (t *LocalTier) RemoveExpired(ctx context.Context, userID string, now time.Time) (int, error) {
	return t.Rewrite(ctx, userID, func(entries []types.LocalEntry) ([]types.LocalEntry, int) {
		kept := entries[:0]
		for _, e := range entries {
			if !e.IsExpired(now) {
				kept = append(kept, e)
			}
		}
		return kept, len(entries) - len(kept)
	})
}

// Rewrite applies fn to the user's entries and saves the result when fn
// reports at least one change.
func (t *LocalTier) Rewrite(ctx context.Context, userID string, fn func([]types.LocalEntry) ([]types.LocalEntry, int)) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.load(ctx, userID)
	if len(entries) == 0 {
		return 0, nil
	}
	next, changed := fn(entries)
	if changed == 0 {
		return 0, nil
	}
	if _, err := t.save(ctx, userID, next); err != nil {
		return 0, err
	}
	return changed, nil
}

// LoadMetrics reads the persisted performance snapshot.
func (t *LocalTier) LoadMetrics(ctx context.Context) (*types.PerformanceMetrics, bool) {
	data, err := t.store.Get(ctx, t.metricsKey())
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			t.logger.Warn("metrics read failed", "error", err)
		}
		return nil, false
	}
	var m types.PerformanceMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		t.logger.Warn("metrics blob undecodable", "error", err)
		return nil, false
	}
	return &m, true
}

// SaveMetrics persists a performance snapshot.
func (t *LocalTier) SaveMetrics(ctx context.Context, m *types.PerformanceMetrics) error {
	data, err := json.Marshal(m)
	if err != nil {
		return types.StorageError("SaveMetrics", t.metricsKey(), err)
	}
	if err := t.store.Set(ctx, t.metricsKey(), data); err != nil {
		return types.StorageError("SaveMetrics", t.metricsKey(), err)
	}
	return nil
}

// LastCleanup returns when maintenance last ran for the user, or the zero time.
func (t *LocalTier) LastCleanup(ctx context.Context, userID string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cleanupTimes(ctx)[userID]
}

// SetLastCleanup records a maintenance run for the user.
func (t *LocalTier) SetLastCleanup(ctx context.Context, userID string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	times := t.cleanupTimes(ctx)
	times[userID] = at
	data, err := json.Marshal(times)
	if err != nil {
		return types.StorageError("SetLastCleanup", t.lastCleanupKey(), err)
	}
	if err := t.store.Set(ctx, t.lastCleanupKey(), data); err != nil {
		return types.StorageError("SetLastCleanup", t.lastCleanupKey(), err)
	}
	return nil
}

func (t *LocalTier) cleanupTimes(ctx context.Context) map[string]time.Time {
	times := make(map[string]time.Time)
	data, err := t.store.Get(ctx, t.lastCleanupKey())
	if err != nil {
		return times
	}
	if err := json.Unmarshal(data, &times); err != nil {
		t.logger.Warn("last cleanup blob undecodable", "error", err)
		return make(map[string]time.Time)
	}
	return times
}

func indexOf(entries []types.LocalEntry, barcode string) int {
	for i := range entries {
		if entries[i].Barcode == barcode {
			return i
		}
	}
	return -1
}
