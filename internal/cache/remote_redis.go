package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/LavishGent/scancache/internal/config"
	"github.com/LavishGent/scancache/internal/types"
)

const (
	disconnectErrorThreshold = 5
	findLatestScanDepth      = 5
)

var errRedisUnavailable = errors.New("redis unavailable")

// RedisRemoteStore keeps remote rows in Redis.
//
// Each row is a JSON document under {prefix}entry:{id}. Three sorted sets per
// user index the rows by barcode, creation time and expiry, scored in Unix
// microseconds.
type RedisRemoteStore struct {
	client *redis.Client
	config config.RedisConfig
	logger *slog.Logger

	mu            sync.RWMutex
	connected     atomic.Bool
	lastError     error
	lastErrorTime time.Time
	errorCount    atomic.Int64

	healthCheckStopCh chan struct{}
	healthCheckWg     sync.WaitGroup
	closeOnce         sync.Once
}

// NewRedisRemoteStore connects to Redis. A failed initial ping is logged and
// the store starts disconnected; the health check reconnects it.
func NewRedisRemoteStore(cfg config.RedisConfig, logger *slog.Logger) (*RedisRemoteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "remote-redis")

	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password.Value(),
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	}

	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec // opt-in for self-signed dev clusters
		}
		if cfg.TLSSkipVerify {
			logger.Warn("TLS certificate verification is disabled - this is insecure for production use")
		}
	}

	s := &RedisRemoteStore{
		client:            redis.NewClient(opts),
		config:            cfg,
		logger:            logger,
		healthCheckStopCh: make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Warn("Redis initial connection failed", "error", err)
		s.setError(err)
	} else {
		s.connected.Store(true)
		s.logger.Info("Redis connected", "address", cfg.Address)
	}

	if cfg.HealthCheckInterval > 0 {
		s.healthCheckWg.Add(1)
		go s.healthCheckWorker()
	}

	return s, nil
}

func (s *RedisRemoteStore) Name() string {
	return "redis"
}

func (s *RedisRemoteStore) IsAvailable() bool {
	return s.connected.Load()
}

func (s *RedisRemoteStore) entryKey(id string) string {
	return s.config.KeyPrefix + "entry:" + id
}

func (s *RedisRemoteStore) barcodeKey(userID, barcode string) string {
	return s.config.KeyPrefix + "user:" + userID + ":barcode:" + barcode
}

func (s *RedisRemoteStore) createdKey(userID string) string {
	return s.config.KeyPrefix + "user:" + userID + ":created"
}

func (s *RedisRemoteStore) expiresKey(userID string) string {
	return s.config.KeyPrefix + "user:" + userID + ":expires"
}

func (s *RedisRemoteStore) ready(op, userID string) error {
	if userID == "" {
		return types.ErrUnauthenticated
	}
	if !s.connected.Load() {
		return types.BackendError(op, "", errRedisUnavailable)
	}
	return nil
}

func (s *RedisRemoteStore) fail(op, key string, err error) error {
	s.handleError(err)
	return types.BackendError(op, key, err)
}

func (s *RedisRemoteStore) FindLatest(ctx context.Context, userID, barcode string) (*types.RemoteEntry, error) {
	if err := s.ready("FindLatest", userID); err != nil {
		return nil, err
	}

	idx := s.barcodeKey(userID, barcode)
	ids, err := s.client.ZRevRange(ctx, idx, 0, findLatestScanDepth-1).Result()
	if err != nil {
		return nil, s.fail("FindLatest", barcode, err)
	}

	for _, id := range ids {
		entry, err := s.getEntry(ctx, id)
		if errors.Is(err, types.ErrNotFound) {
			// Index points at a row that is gone.
			s.client.ZRem(ctx, idx, id)
			continue
		}
		if err != nil {
			return nil, s.fail("FindLatest", barcode, err)
		}
		s.clearError()
		return entry, nil
	}

	s.clearError()
	return nil, types.ErrNotFound
}

func (s *RedisRemoteStore) getEntry(ctx context.Context, id string) (*types.RemoteEntry, error) {
	data, err := s.client.Get(ctx, s.entryKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var entry types.RemoteEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", id, err)
	}
	return &entry, nil
}

func (s *RedisRemoteStore) Count(ctx context.Context, userID string) (int64, error) {
	if err := s.ready("Count", userID); err != nil {
		return 0, err
	}
	n, err := s.client.ZCard(ctx, s.createdKey(userID)).Result()
	if err != nil {
		return 0, s.fail("Count", "", err)
	}
	s.clearError()
	return n, nil
}

func (s *RedisRemoteStore) OldestIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	if err := s.ready("OldestIDs", userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	ids, err := s.client.ZRange(ctx, s.createdKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, s.fail("OldestIDs", "", err)
	}
	s.clearError()
	return ids, nil
}

func (s *RedisRemoteStore) List(ctx context.Context, userID string) ([]types.RemoteEntry, error) {
	if err := s.ready("List", userID); err != nil {
		return nil, err
	}
	ids, err := s.client.ZRange(ctx, s.createdKey(userID), 0, -1).Result()
	if err != nil {
		return nil, s.fail("List", "", err)
	}
	entries, err := s.loadEntries(ctx, ids)
	if err != nil {
		return nil, s.fail("List", "", err)
	}
	s.clearError()
	return entries, nil
}

// loadEntries fetches rows by id, skipping ids whose row is gone.
func (s *RedisRemoteStore) loadEntries(ctx context.Context, ids []string) ([]types.RemoteEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.entryKey(id)
	}

	results, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]types.RemoteEntry, 0, len(results))
	for i, result := range results {
		str, ok := result.(string)
		if !ok {
			continue
		}
		var entry types.RemoteEntry
		if err := json.Unmarshal([]byte(str), &entry); err != nil {
			s.logger.Warn("skipping undecodable row", "id", ids[i], "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisRemoteStore) Insert(ctx context.Context, entry *types.RemoteEntry) error {
	if err := s.ready("Insert", entry.UserID); err != nil {
		return err
	}
	if err := s.write(ctx, entry); err != nil {
		return s.fail("Insert", entry.Barcode, err)
	}
	s.clearError()
	return nil
}

func (s *RedisRemoteStore) Update(ctx context.Context, entry *types.RemoteEntry) error {
	if err := s.ready("Update", entry.UserID); err != nil {
		return err
	}

	existing, err := s.getEntry(ctx, entry.ID)
	if errors.Is(err, types.ErrNotFound) {
		return types.ErrNotFound
	}
	if err != nil {
		return s.fail("Update", entry.Barcode, err)
	}
	if existing.UserID != entry.UserID {
		return types.ErrNotFound
	}

	if existing.Barcode != entry.Barcode {
		s.client.ZRem(ctx, s.barcodeKey(entry.UserID, existing.Barcode), entry.ID)
	}
	if err := s.write(ctx, entry); err != nil {
		return s.fail("Update", entry.Barcode, err)
	}
	s.clearError()
	return nil
}

func (s *RedisRemoteStore) write(ctx context.Context, entry *types.RemoteEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.entryKey(entry.ID), data, 0)
		pipe.ZAdd(ctx, s.barcodeKey(entry.UserID, entry.Barcode),
			redis.Z{Score: float64(entry.CreatedAt.UnixMicro()), Member: entry.ID})
		pipe.ZAdd(ctx, s.createdKey(entry.UserID),
			redis.Z{Score: float64(entry.CreatedAt.UnixMicro()), Member: entry.ID})
		pipe.ZAdd(ctx, s.expiresKey(entry.UserID),
			redis.Z{Score: float64(entry.ExpiresAt.UnixMicro()), Member: entry.ID})
		return nil
	})
	return err
}

func (s *RedisRemoteStore) Delete(ctx context.Context, userID, id string) error {
	if err := s.ready("Delete", userID); err != nil {
		return err
	}
	entries, err := s.loadEntries(ctx, []string{id})
	if err != nil {
		return s.fail("Delete", id, err)
	}
	if len(entries) == 1 && entries[0].UserID != userID {
		return nil
	}
	if err := s.remove(ctx, userID, []string{id}, entries); err != nil {
		return s.fail("Delete", id, err)
	}
	s.clearError()
	return nil
}

func (s *RedisRemoteStore) DeleteExpired(ctx context.Context, userID string, now time.Time) (int64, error) {
	if err := s.ready("DeleteExpired", userID); err != nil {
		return 0, err
	}

	ids, err := s.client.ZRangeByScore(ctx, s.expiresKey(userID), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(now.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return 0, s.fail("DeleteExpired", "", err)
	}
	if len(ids) == 0 {
		s.clearError()
		return 0, nil
	}

	entries, err := s.loadEntries(ctx, ids)
	if err != nil {
		return 0, s.fail("DeleteExpired", "", err)
	}
	if err := s.remove(ctx, userID, ids, entries); err != nil {
		return 0, s.fail("DeleteExpired", "", err)
	}
	s.clearError()
	return int64(len(ids)), nil
}

func (s *RedisRemoteStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	if err := s.ready("DeleteAll", userID); err != nil {
		return 0, err
	}

	ids, err := s.client.ZRange(ctx, s.createdKey(userID), 0, -1).Result()
	if err != nil {
		return 0, s.fail("DeleteAll", "", err)
	}
	entries, err := s.loadEntries(ctx, ids)
	if err != nil {
		return 0, s.fail("DeleteAll", "", err)
	}
	if err := s.remove(ctx, userID, ids, entries); err != nil {
		return 0, s.fail("DeleteAll", "", err)
	}
	if err := s.client.Del(ctx, s.createdKey(userID), s.expiresKey(userID)).Err(); err != nil {
		return 0, s.fail("DeleteAll", "", err)
	}
	s.clearError()
	return int64(len(ids)), nil
}

// remove deletes rows and their index members. entries supplies the barcode
// of each row still present.
func (s *RedisRemoteStore) remove(ctx context.Context, userID string, ids []string, entries []types.RemoteEntry) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, s.entryKey(id))
		}
		for _, e := range entries {
			pipe.ZRem(ctx, s.barcodeKey(userID, e.Barcode), e.ID)
		}
		pipe.ZRem(ctx, s.createdKey(userID), members...)
		pipe.ZRem(ctx, s.expiresKey(userID), members...)
		return nil
	})
	return err
}

func (s *RedisRemoteStore) healthCheckWorker() {
	defer s.healthCheckWg.Done()

	ticker := time.NewTicker(s.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.healthCheckStopCh:
			return
		case <-ticker.C:
			s.performHealthCheck()
		}
	}
}

func (s *RedisRemoteStore) performHealthCheck() {
	wasConnected := s.connected.Load()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.DialTimeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		if wasConnected {
			s.logger.Warn("Redis health check failed", "error", err)
			s.setError(err)
		}
		return
	}

	if !wasConnected {
		s.connected.Store(true)
		s.errorCount.Store(0)
		s.logger.Info("Redis connection restored via health check")
	}
}

func (s *RedisRemoteStore) handleError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastError = err
	s.lastErrorTime = time.Now()
	count := s.errorCount.Add(1)

	if count >= disconnectErrorThreshold {
		if s.connected.CompareAndSwap(true, false) {
			s.logger.Warn("Redis marked as disconnected after errors",
				"error_count", count,
				"last_error", err,
			)
		}
	}
}

func (s *RedisRemoteStore) clearError() {
	if s.errorCount.Swap(0) > 0 {
		if s.connected.CompareAndSwap(false, true) {
			s.logger.Info("Redis connection restored")
		}
	}
}

func (s *RedisRemoteStore) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err
	s.lastErrorTime = time.Now()
	s.connected.Store(false)
}

// LastError returns the most recent backend error and when it happened.
func (s *RedisRemoteStore) LastError() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErrorTime, s.lastError
}

func (s *RedisRemoteStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return err
	}
	if s.connected.CompareAndSwap(false, true) {
		s.errorCount.Store(0)
		s.logger.Info("Redis reconnected")
	}
	return nil
}

func (s *RedisRemoteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.connected.Store(false)
		close(s.healthCheckStopCh)
		s.healthCheckWg.Wait()
		err = s.client.Close()
	})
	return err
}

var _ types.RemoteStore = (*RedisRemoteStore)(nil)
