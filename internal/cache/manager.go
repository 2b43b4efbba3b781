package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/LavishGent/scancache/internal/config"
	"github.com/LavishGent/scancache/internal/metrics"
	"github.com/LavishGent/scancache/internal/metrics/datadog"
	prommetrics "github.com/LavishGent/scancache/internal/metrics/prometheus"
	"github.com/LavishGent/scancache/internal/policy"
	"github.com/LavishGent/scancache/internal/resilience"
	"github.com/LavishGent/scancache/internal/types"
)

// DefaultShutdownTimeout is the default timeout for shutting down the cache manager.
const DefaultShutdownTimeout = 30 * time.Second

// DefaultBackgroundOpTimeout bounds background work that has no timeout of its own.
const DefaultBackgroundOpTimeout = 30 * time.Second

// maxDuplicateSweep bounds how many duplicate remote rows one removal deletes.
const maxDuplicateSweep = 16

// FetchFunc looks a barcode up in the external product catalogs. A nil
// draft with a nil error means the catalogs do not know the code.
type FetchFunc func(ctx context.Context, barcode string) (*types.BarcodeDraft, error)

// Manager is the cache facade. It reads through the local tier to the
// remote tier and writes through the remote tier to the local tier.
type Manager struct {
	local        *LocalTier
	remote       types.RemoteStore
	guard        *remoteGuard
	policy       resilience.Executor
	ttl          *policy.Policy
	codec        *Codec
	maintainer   *Maintainer
	config       *config.Config
	tracker      *metrics.Tracker
	metrics      types.MetricsRecorder
	publisher    metrics.Publisher
	bgPublisher  *metrics.BackgroundPublisher
	logger       *slog.Logger
	keyValidator *types.KeyValidator
	now          func() time.Time

	locks          keyLocks
	sfGroup        singleflight.Group
	shutdownCancel context.CancelFunc
	shutdownCtx    context.Context
	bgWg           sync.WaitGroup
	bgMu           sync.Mutex
	closed         atomic.Bool
}

// NewManager creates a cache manager from cfg. Backends are chosen by
// cfg.Local.Backend and cfg.Remote.Backend unless opts injects them. A
// remote backend that cannot be created degrades to local-only mode.
//
//nolint:gocyclo // Configuration initialization requires multiple conditional checks
func NewManager(cfg *config.Config, opts *types.ManagerOptions) (*Manager, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := *cfg
	if opts == nil {
		opts = &types.ManagerOptions{}
	}

	logger := slog.Default()
	if opts.Logger != nil {
		logger = slog.New(slogAdapter{logger: opts.Logger})
	}

	if !opts.PostgresDSN.IsEmpty() {
		c.Remote.Postgres.DSN = opts.PostgresDSN
	}
	if opts.RedisAddress != "" {
		c.Remote.Redis.Address = opts.RedisAddress
	}
	if opts.DisableRemote {
		c.Remote.Backend = "disabled"
	}
	if opts.DisableResilience {
		c.CircuitBreaker.Enabled = false
		c.Retry.Enabled = false
		c.Bulkhead.Enabled = false
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	now := time.Now
	if opts.Clock != nil {
		now = opts.Clock
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	m := &Manager{
		config:         &c,
		logger:         logger.With("component", "cache-manager"),
		codec:          NewCodec(c.Compression),
		ttl:            policy.New(c.TTL, c.Popularity),
		keyValidator:   types.NewKeyValidator(c.KeyValidation.ToTypesConfig()),
		tracker:        metrics.NewTracker(),
		now:            now,
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}

	blobs := opts.LocalStore
	if blobs == nil {
		var err error
		blobs, err = newBlobStore(c.Local, logger)
		if err != nil {
			shutdownCancel()
			return nil, err
		}
	}
	m.local = NewLocalTier(blobs, c.Local, logger)

	m.remote = opts.RemoteStore
	if m.remote == nil {
		m.remote = newRemoteStore(&c, logger)
	}

	if c.CircuitBreaker.Enabled || c.Retry.Enabled || c.Bulkhead.Enabled {
		m.policy = resilience.NewPolicy(m.remote.Name(), &c)
	} else {
		m.policy = resilience.NewDisabledPolicy()
	}
	m.guard = newRemoteGuard(m.policy, c.Remote.OperationTimeout)

	if prev, ok := m.local.LoadMetrics(shutdownCtx); ok {
		m.tracker.Restore(prev)
	}
	m.setupMetrics(opts, logger)

	m.policy.SetOnCircuitStateChange(func(from, to resilience.State) {
		m.logger.Info("Circuit breaker state changed",
			"backend", m.remote.Name(),
			"from", from.String(),
			"to", to.String(),
		)
		m.metrics.RecordCircuitBreakerStateChange(from.String(), to.String())
	})

	m.maintainer = NewMaintainer(m.local, m.remote, m.guard, m.codec, &c, m.metrics, logger, now)
	m.maintainer.Start(shutdownCtx)

	m.logger.Info("Cache manager ready",
		"local", blobs.Name(),
		"remote", m.remote.Name(),
		"remote_available", m.remote.IsAvailable(),
	)
	return m, nil
}

func newBlobStore(cfg config.LocalConfig, logger *slog.Logger) (types.BlobStore, error) {
	switch cfg.Backend {
	case "badger":
		return NewBadgerBlobStore(cfg.Badger, logger)
	case "disabled":
		return NewDisabledBlobStore(), nil
	default:
		return NewMemoryBlobStore(cfg.Memory, logger)
	}
}

func newRemoteStore(cfg *config.Config, logger *slog.Logger) types.RemoteStore {
	switch cfg.Remote.Backend {
	case "postgres":
		timeout := cfg.Remote.Postgres.ConnectTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		store, err := NewPostgresRemoteStore(ctx, cfg.Remote.Postgres, logger)
		if err != nil {
			logger.Warn("Failed to create Postgres remote store, using local-only mode", "error", err)
			return NewDisabledRemoteStore()
		}
		return store
	case "redis":
		store, err := NewRedisRemoteStore(cfg.Remote.Redis, logger)
		if err != nil {
			logger.Warn("Failed to create Redis remote store, using local-only mode", "error", err)
			return NewDisabledRemoteStore()
		}
		return store
	case "disabled":
		return NewDisabledRemoteStore()
	default:
		return NewMemoryRemoteStore()
	}
}

// setupMetrics wires the tracker, the injected recorder and the configured
// publishers into m.metrics.
func (m *Manager) setupMetrics(opts *types.ManagerOptions, logger *slog.Logger) {
	recorders := []types.MetricsRecorder{m.tracker, opts.Metrics}
	m.publisher = metrics.NewNoOpPublisher()

	if m.config.Metrics.Enabled {
		if m.config.Metrics.Prometheus.Enabled {
			recorders = append(recorders, prommetrics.NewRecorder(m.config.Metrics.Prometheus.Namespace, opts.Registerer))
		}

		if m.config.Metrics.DataDog.Enabled {
			pub, err := datadog.NewPublisher(&m.config.Metrics.DataDog, logger)
			if err != nil {
				m.logger.Warn("DataDog publisher unavailable, logging metrics instead", "error", err)
				m.publisher = metrics.NewLoggingPublisher(logger)
			} else {
				m.publisher = pub
				recorders = append(recorders, metrics.NewPublishingRecorder(pub))
			}
		} else {
			m.publisher = metrics.NewLoggingPublisher(logger)
		}

		if m.config.Metrics.PublishInterval > 0 {
			m.bgPublisher = metrics.NewBackgroundPublisher(m.publisher, m.config.Metrics.PublishInterval, m.GetPerformanceMetrics, logger)
			m.bgPublisher.Start(m.shutdownCtx)
		}
	}

	m.metrics = metrics.NewMultiRecorder(recorders...)
}

// GetCachedBarcode returns the cached record for code, or (nil, nil) when
// neither tier holds a live entry. Local failures and undecodable payloads
// count as misses; remote failures are returned.
//
// code is canonicalized before lookup and the returned record carries the
// canonical form in Barcode (UPC-A "036000291452" reads back as
// "0036000291452").
func (m *Manager) GetCachedBarcode(ctx context.Context, userID, code string) (*types.CachedBarcode, error) {
	const op = "GetCachedBarcode"
	key, err := m.begin(op, userID, code)
	if err != nil {
		return nil, err
	}

	start := m.now()
	if rec := m.lookupLocal(ctx, userID, key, start); rec != nil {
		m.metrics.RecordHit(types.TierLocal, m.now().Sub(start))
		return rec, nil
	}

	rec, err := m.lookupRemote(ctx, userID, key, start)
	if err != nil {
		m.metrics.RecordError(types.TierRemote, op, err)
		m.logger.Warn("Remote lookup failed", "barcode", key, "error", err)
		return nil, err
	}
	if rec != nil {
		m.metrics.RecordHit(types.TierRemote, m.now().Sub(start))
		return rec, nil
	}

	m.metrics.RecordMiss(m.now().Sub(start))
	return nil, nil
}

func (m *Manager) lookupLocal(ctx context.Context, userID, key string, now time.Time) *types.CachedBarcode {
	res, err := m.local.Lookup(ctx, userID, key, now, func(e *types.LocalEntry) {
		m.ttl.Touch(e, now)
	})
	if err != nil {
		m.metrics.RecordError(types.TierLocal, "Lookup", err)
		m.logger.Warn("Local tier save after lookup failed", "barcode", key, "error", err)
	}
	if res.Expired {
		m.metrics.RecordExpired(types.TierLocal, 1)
		return nil
	}
	if res.Entry == nil {
		return nil
	}

	pd, err := m.decodeProduct(res.Entry.Data, res.Entry.Compressed)
	if err != nil {
		m.logger.Warn("Dropping undecodable local entry", "barcode", key, "error", err)
		if _, rmErr := m.local.Remove(ctx, userID, key); rmErr != nil {
			m.logger.Debug("Removing undecodable local entry failed", "barcode", key, "error", rmErr)
		}
		return nil
	}
	return fromLocal(res.Entry, pd, types.TierLocal)
}

func (m *Manager) lookupRemote(ctx context.Context, userID, key string, now time.Time) (*types.CachedBarcode, error) {
	row, err := guarded(ctx, m.guard, func(ctx context.Context) (*types.RemoteEntry, error) {
		return m.remote.FindLatest(ctx, userID, key)
	})
	if types.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if row.IsExpired(now) {
		if err := m.guard.do(ctx, func(ctx context.Context) error {
			return m.remote.Delete(ctx, userID, row.ID)
		}); err != nil {
			m.logger.Debug("Deleting expired remote row failed", "barcode", key, "id", row.ID, "error", err)
		} else {
			m.metrics.RecordExpired(types.TierRemote, 1)
		}
		return nil, nil
	}

	pd, err := m.decodeProduct(row.Data, row.Compressed)
	if err != nil {
		m.logger.Warn("Remote entry undecodable, treating as miss", "barcode", key, "id", row.ID, "error", err)
		return nil, nil
	}

	entry := types.LocalEntry{
		Barcode:         key,
		Data:            row.Data,
		Compressed:      row.Compressed,
		Source:          row.Source,
		ConfidenceScore: row.ConfidenceScore,
		CreatedAt:       row.CreatedAt,
		ExpiresAt:       row.ExpiresAt,
		LastAccessedAt:  now,
		Popularity:      types.PopularityLow,
	}
	m.ttl.Touch(&entry, now)

	evicted, err := m.local.Upsert(ctx, userID, entry)
	if err != nil {
		m.metrics.RecordError(types.TierLocal, "Backfill", err)
		m.logger.Warn("Local backfill failed", "barcode", key, "error", err)
	}
	m.metrics.RecordEviction(types.TierLocal, evicted)

	return fromLocal(&entry, pd, types.TierRemote), nil
}

// CacheBarcode stores draft in both tiers, updating the user's live remote
// row for the barcode in place when there is one. It returns the stored
// record with normalized, uncompressed product data. The record's Barcode
// is the canonical key, which may differ from draft.Barcode.
func (m *Manager) CacheBarcode(ctx context.Context, userID string, draft *types.BarcodeDraft) (*types.CachedBarcode, error) {
	const op = "CacheBarcode"
	if draft == nil {
		return nil, types.NewCacheError(op, "", types.TierRemote, fmt.Errorf("%w: nil draft", types.ErrInvalidBarcode))
	}
	key, err := m.begin(op, userID, draft.Barcode)
	if err != nil {
		return nil, err
	}

	d := *draft
	d.Barcode = key
	d.ConfidenceScore = policy.ClampConfidence(d.ConfidenceScore)
	if d.Source == "" {
		d.Source = types.SourceLocal
	}

	raw, err := json.Marshal(d.ProductData)
	if err != nil {
		return nil, types.NewCacheError(op, key, types.TierLocal, err)
	}
	payload, compressed, err := m.codec.Encode(raw)
	if err != nil {
		return nil, types.NewCacheError(op, key, types.TierLocal, err)
	}

	start := m.now()
	expiresAt := m.ttl.ExpiresAt(start, &d)

	unlock := m.locks.lock(userID, key)
	row, err := m.writeRemote(ctx, userID, &d, payload, compressed, start, expiresAt)
	if err != nil {
		unlock()
		m.metrics.RecordError(types.TierRemote, op, err)
		m.logger.Warn("Remote write failed", "barcode", key, "error", err)
		return nil, err
	}

	entry := types.LocalEntry{
		Barcode:         key,
		Data:            payload,
		Compressed:      compressed,
		Source:          d.Source,
		ConfidenceScore: d.ConfidenceScore,
		CreatedAt:       row.CreatedAt,
		ExpiresAt:       expiresAt,
		LastAccessedAt:  start,
		Popularity:      types.PopularityLow,
	}
	evicted, err := m.local.Upsert(ctx, userID, entry)
	unlock()
	if err != nil {
		m.metrics.RecordError(types.TierLocal, op, err)
		m.logger.Warn("Local mirror failed", "barcode", key, "error", err)
	}
	m.metrics.RecordEviction(types.TierLocal, evicted)
	m.metrics.RecordWrite(types.TierRemote, len(payload), compressed, m.now().Sub(start))

	m.triggerMaintenance(ctx, userID)

	pd, err := types.NormalizeProductData(raw)
	if err != nil {
		pd = d.ProductData
	}
	return fromLocal(&entry, pd, ""), nil
}

// writeRemote refreshes the live row for the barcode or inserts a new one.
func (m *Manager) writeRemote(
	ctx context.Context,
	userID string,
	d *types.BarcodeDraft,
	payload json.RawMessage,
	compressed bool,
	now, expiresAt time.Time,
) (*types.RemoteEntry, error) {
	existing, err := guarded(ctx, m.guard, func(ctx context.Context) (*types.RemoteEntry, error) {
		return m.remote.FindLatest(ctx, userID, d.Barcode)
	})
	if err != nil && !types.IsNotFound(err) {
		return nil, err
	}

	row := &types.RemoteEntry{
		ID:              uuid.NewString(),
		UserID:          userID,
		Barcode:         d.Barcode,
		Data:            payload,
		Compressed:      compressed,
		Source:          d.Source,
		ConfidenceScore: d.ConfidenceScore,
		ExpiresAt:       expiresAt,
		CreatedAt:       now,
	}

	if existing != nil && !existing.IsExpired(now) {
		row.ID = existing.ID
		err := m.guard.do(ctx, func(ctx context.Context) error {
			return m.remote.Update(ctx, row)
		})
		if !types.IsNotFound(err) {
			return row, err
		}
		// deleted since FindLatest
		row.ID = uuid.NewString()
	}

	if err := m.guard.do(ctx, func(ctx context.Context) error {
		return m.remote.Insert(ctx, row)
	}); err != nil {
		return nil, err
	}

	if existing != nil && existing.IsExpired(now) {
		if err := m.guard.do(ctx, func(ctx context.Context) error {
			return m.remote.Delete(ctx, userID, existing.ID)
		}); err != nil {
			m.logger.Debug("Deleting superseded expired row failed", "barcode", d.Barcode, "error", err)
		}
	}
	return row, nil
}

// GetOrFetch returns the cached record for code, calling fetch on a miss
// and caching its result. Concurrent misses for the same user and barcode
// share one fetch, which runs detached from any single caller's context:
// a caller that gives up returns ctx.Err() while the fetch completes for
// the others. Remote read failures fall back to fetch.
func (m *Manager) GetOrFetch(ctx context.Context, userID, code string, fetch FetchFunc) (*types.CachedBarcode, error) {
	rec, err := m.GetCachedBarcode(ctx, userID, code)
	if rec != nil {
		return rec, nil
	}
	if err != nil && !isBackendFailure(err) {
		return nil, err
	}

	key, err := m.keyValidator.Canonical(code)
	if err != nil {
		return nil, err
	}

	ch := m.sfGroup.DoChan(userID+"\x00"+key, func() (any, error) {
		// shared by every waiter, so no single caller may cancel it
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultBackgroundOpTimeout)
		defer cancel()

		if rec, err := m.GetCachedBarcode(ctx, userID, key); rec != nil && err == nil {
			return rec, nil
		}

		draft, err := fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		if draft == nil {
			return (*types.CachedBarcode)(nil), nil
		}
		if draft.Barcode == "" {
			draft.Barcode = key
		}

		stored, err := m.CacheBarcode(ctx, userID, draft)
		if err != nil {
			m.logger.Debug("Failed to cache fetched barcode", "barcode", key, "error", err)
			return fromDraft(draft), nil
		}
		return stored, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	rec, ok := res.Val.(*types.CachedBarcode)
	if !ok {
		return nil, fmt.Errorf("unexpected result type: %T", res.Val)
	}
	return rec, nil
}

// RemoveCachedBarcode deletes code from both tiers and reports whether
// anything was removed.
func (m *Manager) RemoveCachedBarcode(ctx context.Context, userID, code string) (bool, error) {
	key, err := m.begin("RemoveCachedBarcode", userID, code)
	if err != nil {
		return false, err
	}

	unlock := m.locks.lock(userID, key)
	defer unlock()

	removed, err := m.local.Remove(ctx, userID, key)
	if err != nil {
		m.logger.Warn("Local removal failed", "barcode", key, "error", err)
	}

	for range maxDuplicateSweep {
		row, err := guarded(ctx, m.guard, func(ctx context.Context) (*types.RemoteEntry, error) {
			return m.remote.FindLatest(ctx, userID, key)
		})
		if types.IsNotFound(err) {
			break
		}
		if err != nil {
			return removed, err
		}
		if err := m.guard.do(ctx, func(ctx context.Context) error {
			return m.remote.Delete(ctx, userID, row.ID)
		}); err != nil {
			return removed, err
		}
		removed = true
	}
	return removed, nil
}

// ClearCache drops every entry of the user from both tiers.
func (m *Manager) ClearCache(ctx context.Context, userID string) error {
	if err := m.check("ClearCache", userID); err != nil {
		return err
	}

	var errs []error
	if _, err := m.local.Clear(ctx, userID); err != nil {
		errs = append(errs, err)
	}
	n, err := guarded(ctx, m.guard, func(ctx context.Context) (int64, error) {
		return m.remote.DeleteAll(ctx, userID)
	})
	if err != nil {
		errs = append(errs, err)
	}
	m.logger.Info("Cache cleared", "user", userID, "remote_rows", n)
	return errors.Join(errs...)
}

// RunMaintenance runs a maintenance pass for the user now, ignoring the
// interval gate.
func (m *Manager) RunMaintenance(ctx context.Context, userID string) (*types.MaintenanceReport, error) {
	if err := m.check("RunMaintenance", userID); err != nil {
		return nil, err
	}
	return m.maintainer.Run(ctx, userID), nil
}

func (m *Manager) triggerMaintenance(ctx context.Context, userID string) {
	if !m.maintainer.Due(ctx, userID) {
		return
	}
	if m.config.Maintenance.Async {
		m.runBackground(func(ctx context.Context) {
			m.maintainer.RunIfDue(ctx, userID)
		})
		return
	}
	// the caller's cancellation must not cut a pass short
	m.maintainer.RunIfDue(context.WithoutCancel(ctx), userID)
}

// GetCacheStats describes the user's entries in both tiers. A remote count
// failure is logged and leaves RemoteEntries at zero.
func (m *Manager) GetCacheStats(ctx context.Context, userID string) (*types.CacheStats, error) {
	if err := m.check("GetCacheStats", userID); err != nil {
		return nil, err
	}

	now := m.now()
	stats := &types.CacheStats{
		Timestamp:        now,
		LocalMaxEntries:  m.local.MaxEntries(),
		RemoteMaxEntries: m.config.Remote.MaxEntriesPerUser,
		LastMaintenance:  m.local.LastCleanup(ctx, userID),
	}

	for _, e := range m.local.Load(ctx, userID) {
		stats.LocalEntries++
		stats.TotalAccesses += e.AccessCount
		if e.Compressed {
			stats.CompressedEntries++
		}
		if e.IsExpired(now) {
			stats.ExpiredEntries++
		}
		switch e.Popularity {
		case types.PopularityHigh:
			stats.HighPopularity++
		case types.PopularityMedium:
			stats.MediumPopularity++
		default:
			stats.LowPopularity++
		}
		if stats.OldestEntry.IsZero() || e.CreatedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = e.CreatedAt
		}
		if e.CreatedAt.After(stats.NewestEntry) {
			stats.NewestEntry = e.CreatedAt
		}
	}

	count, err := guarded(ctx, m.guard, func(ctx context.Context) (int64, error) {
		return m.remote.Count(ctx, userID)
	})
	if err != nil {
		m.logger.Warn("Remote count failed", "user", userID, "error", err)
	}
	stats.RemoteEntries = count
	return stats, nil
}

// GetPerformanceMetrics returns the process-wide activity counters,
// including those restored from the previous run.
func (m *Manager) GetPerformanceMetrics() *types.PerformanceMetrics {
	snapshot := m.tracker.Snapshot()
	snapshot.CircuitBreakerState = m.policy.CircuitState().String()
	return snapshot
}

// Health probes both tiers concurrently.
func (m *Manager) Health(ctx context.Context) (*types.HealthMetrics, error) {
	health := &types.HealthMetrics{
		Timestamp:           m.now(),
		CircuitBreakerState: m.policy.CircuitState().String(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		store := m.local.Backend()
		health.Local = types.TierHealth{
			Backend:   store.Name(),
			Available: store.IsAvailable(),
			Status:    types.HealthStatusHealthy,
		}
		if !health.Local.Available {
			health.Local.Status = types.HealthStatusUnhealthy
		}
		return nil
	})
	g.Go(func() error {
		health.Remote = types.TierHealth{
			Backend: m.remote.Name(),
			Status:  types.HealthStatusHealthy,
		}
		pingCtx, cancel := context.WithTimeout(gctx, m.pingTimeout())
		defer cancel()
		err := m.remote.Ping(pingCtx)
		health.Remote.Available = err == nil && m.remote.IsAvailable() && !m.policy.IsCircuitOpen()
		if err != nil {
			health.Remote.LastError = err.Error()
		}
		if !health.Remote.Available {
			health.Remote.Status = types.HealthStatusUnhealthy
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	switch {
	case health.Local.Available && health.Remote.Available:
		health.Status = types.HealthStatusHealthy
	case health.Local.Available || health.Remote.Available:
		health.Status = types.HealthStatusDegraded
	default:
		health.Status = types.HealthStatusUnhealthy
	}
	return health, nil
}

func (m *Manager) pingTimeout() time.Duration {
	if m.config.Remote.OperationTimeout > 0 {
		return m.config.Remote.OperationTimeout
	}
	return 5 * time.Second
}

// Close releases all resources using the default shutdown timeout.
func (m *Manager) Close() error {
	return m.CloseWithTimeout(DefaultShutdownTimeout)
}

// CloseWithTimeout waits up to timeout for background work, persists the
// performance counters and closes both tiers. On timeout it returns
// ErrShutdownTimeout but still closes the tiers.
func (m *Manager) CloseWithTimeout(timeout time.Duration) error {
	// bgMu keeps runBackground from adding to bgWg once closed is set
	m.bgMu.Lock()
	if m.closed.Swap(true) {
		m.bgMu.Unlock()
		return nil
	}
	m.shutdownCancel()
	m.bgMu.Unlock()

	m.logger.Info("Closing cache manager, waiting for background operations", "timeout", timeout)

	done := make(chan struct{})
	go func() {
		m.maintainer.Stop()
		if m.bgPublisher != nil {
			m.bgPublisher.Stop()
		}
		m.bgWg.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
		m.logger.Info("Background operations complete, closing tiers")
	case <-time.After(timeout):
		m.logger.Warn("Shutdown timeout exceeded, proceeding with close", "timeout", timeout)
		errs = append(errs, types.ErrShutdownTimeout)
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.local.SaveMetrics(saveCtx, m.GetPerformanceMetrics()); err != nil {
		m.logger.Warn("Persisting metrics failed", "error", err)
	}

	if err := m.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.local.Backend().Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.remote.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// runBackground runs fn on a goroutine tracked for graceful shutdown. fn's
// context is cancelled on Close. Nothing runs once the manager is closed.
func (m *Manager) runBackground(fn func(ctx context.Context)) {
	m.bgMu.Lock()
	if m.closed.Load() {
		m.bgMu.Unlock()
		return
	}
	m.bgWg.Add(1)
	m.bgMu.Unlock()

	timeout := m.config.Maintenance.Timeout
	if timeout <= 0 {
		timeout = DefaultBackgroundOpTimeout
	}

	go func() {
		defer m.bgWg.Done()
		ctx, cancel := context.WithTimeout(m.shutdownCtx, timeout)
		defer cancel()
		fn(ctx)
	}()
}

// begin validates the common preconditions of a per-barcode operation and
// returns the canonical key.
func (m *Manager) begin(op, userID, code string) (string, error) {
	if err := m.check(op, userID); err != nil {
		return "", err
	}
	key, err := m.keyValidator.Canonical(code)
	if err != nil {
		return "", types.NewCacheError(op, code, types.TierLocal, err)
	}
	m.maintainer.Track(userID)
	return key, nil
}

func (m *Manager) check(op, userID string) error {
	if m.closed.Load() {
		return types.ErrClosed
	}
	if userID == "" {
		return types.NewCacheError(op, "", types.TierRemote, types.ErrUnauthenticated)
	}
	return nil
}

func (m *Manager) decodeProduct(payload json.RawMessage, compressed bool) (types.ProductData, error) {
	raw, err := m.codec.Decode(payload, compressed)
	if err != nil {
		return types.ProductData{}, err
	}
	pd, err := types.NormalizeProductData(raw)
	if err != nil {
		return types.ProductData{}, fmt.Errorf("%w: %w", types.ErrDecompressionFailed, err)
	}
	return pd, nil
}

// isBackendFailure reports whether err came from an unavailable remote tier
// rather than from the caller.
func isBackendFailure(err error) bool {
	return errors.Is(err, types.ErrBackendFailure) ||
		types.IsCircuitOpen(err) ||
		resilience.IsBulkheadError(err) ||
		errors.Is(err, context.DeadlineExceeded)
}

func fromLocal(e *types.LocalEntry, pd types.ProductData, tier string) *types.CachedBarcode {
	return &types.CachedBarcode{
		Barcode:         e.Barcode,
		ProductData:     pd,
		Source:          e.Source,
		ConfidenceScore: e.ConfidenceScore,
		CreatedAt:       e.CreatedAt,
		ExpiresAt:       e.ExpiresAt,
		LastAccessedAt:  e.LastAccessedAt,
		AccessCount:     e.AccessCount,
		Popularity:      e.Popularity,
		Tier:            tier,
	}
}

func fromDraft(d *types.BarcodeDraft) *types.CachedBarcode {
	return &types.CachedBarcode{
		Barcode:         d.Barcode,
		ProductData:     d.ProductData,
		Source:          d.Source,
		ConfidenceScore: policy.ClampConfidence(d.ConfidenceScore),
		Popularity:      types.PopularityLow,
	}
}

//nolint:govet // Simple adapter struct - alignment optimization minimal
type slogAdapter struct {
	attrs  []slog.Attr
	logger types.Logger
	group  string
}

func (a slogAdapter) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

//nolint:gocritic // slog.Handler interface requires passing Record by value
func (a slogAdapter) Handle(ctx context.Context, r slog.Record) error {
	args := make([]any, 0, (len(a.attrs)+r.NumAttrs())*2)
	appendAttr := func(attr slog.Attr) bool {
		key := attr.Key
		if a.group != "" {
			key = a.group + "." + key
		}
		args = append(args, key, attr.Value.Any())
		return true
	}
	for _, attr := range a.attrs {
		appendAttr(attr)
	}
	r.Attrs(appendAttr)

	switch {
	case r.Level >= slog.LevelError:
		a.logger.Error(r.Message, args...)
	case r.Level >= slog.LevelWarn:
		a.logger.Warn(r.Message, args...)
	case r.Level >= slog.LevelInfo:
		a.logger.Info(r.Message, args...)
	default:
		a.logger.Debug(r.Message, args...)
	}
	return nil
}

func (a slogAdapter) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(a.attrs), len(a.attrs)+len(attrs))
	copy(newAttrs, a.attrs)
	return slogAdapter{
		logger: a.logger,
		attrs:  append(newAttrs, attrs...),
		group:  a.group,
	}
}

func (a slogAdapter) WithGroup(name string) slog.Handler {
	if a.group != "" {
		name = a.group + "." + name
	}
	return slogAdapter{logger: a.logger, attrs: a.attrs, group: name}
}
