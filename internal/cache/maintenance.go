package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/LavishGent/scancache/internal/config"
	"github.com/LavishGent/scancache/internal/types"
)

// lastCleanupTimeout bounds recording the pass time after the pass itself.
const lastCleanupTimeout = 5 * time.Second

// Maintainer runs the per-user maintenance pass: expire, normalize legacy
// payloads, then trim the remote tier to its size bound. Step failures are
// collected in the report and never stop later steps.
type Maintainer struct {
	local     *LocalTier
	remote    types.RemoteStore
	guard     *remoteGuard
	codec     *Codec
	metrics   types.MetricsRecorder
	logger    *slog.Logger
	cfg       config.MaintenanceConfig
	maxRemote int
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
	users    map[string]struct{}

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewMaintainer creates a maintainer. metrics may be nil.
func NewMaintainer(
	local *LocalTier,
	remote types.RemoteStore,
	guard *remoteGuard,
	codec *Codec,
	cfg *config.Config,
	metrics types.MetricsRecorder,
	logger *slog.Logger,
	now func() time.Time,
) *Maintainer {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	if guard == nil {
		guard = newRemoteGuard(nil, cfg.Remote.OperationTimeout)
	}
	return &Maintainer{
		local:     local,
		remote:    remote,
		guard:     guard,
		codec:     codec,
		metrics:   metrics,
		logger:    logger.With("component", "maintenance"),
		cfg:       cfg.Maintenance,
		maxRemote: cfg.Remote.MaxEntriesPerUser,
		now:       now,
		inFlight:  make(map[string]struct{}),
		users:     make(map[string]struct{}),
		stopCh:    make(chan struct{}),
	}
}

// Track remembers userID for the background worker.
func (m *Maintainer) Track(userID string) {
	m.mu.Lock()
	m.users[userID] = struct{}{}
	m.mu.Unlock()
}

// Due reports whether at least Interval has passed since the user's last pass.
func (m *Maintainer) Due(ctx context.Context, userID string) bool {
	last := m.local.LastCleanup(ctx, userID)
	return last.IsZero() || m.now().Sub(last) >= m.cfg.Interval
}

// RunIfDue runs a pass when one is due. The report is nil when nothing ran.
func (m *Maintainer) RunIfDue(ctx context.Context, userID string) *types.MaintenanceReport {
	if !m.Due(ctx, userID) {
		return nil
	}
	return m.Run(ctx, userID)
}

// Run executes a pass for userID regardless of the interval. A pass already
// running for the same user is not repeated; its report has Skipped set.
func (m *Maintainer) Run(ctx context.Context, userID string) *types.MaintenanceReport {
	report := &types.MaintenanceReport{UserID: userID, StartedAt: m.now()}

	m.mu.Lock()
	if _, busy := m.inFlight[userID]; busy {
		m.mu.Unlock()
		report.Skipped = true
		return report
	}
	m.inFlight[userID] = struct{}{}
	m.users[userID] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inFlight, userID)
		m.mu.Unlock()
	}()

	parent := ctx
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	now := report.StartedAt
	m.expire(ctx, userID, now, report)
	m.normalizeRemote(ctx, userID, report)
	m.normalizeLocal(ctx, userID, report)
	m.trimRemote(ctx, userID, report)

	// recorded even when the pass ran out of time
	recordCtx, cancelRecord := context.WithTimeout(context.WithoutCancel(parent), lastCleanupTimeout)
	defer cancelRecord()
	if err := m.local.SetLastCleanup(recordCtx, userID, now); err != nil {
		m.logger.Warn("recording maintenance time failed", "user", userID, "error", err)
	}

	report.Duration = m.now().Sub(report.StartedAt)
	if m.metrics != nil {
		m.metrics.RecordExpired(types.TierRemote, int(report.RemoteExpired))
		m.metrics.RecordExpired(types.TierLocal, report.LocalExpired)
		m.metrics.RecordNormalized(types.TierRemote, report.RemoteNormalized)
		m.metrics.RecordNormalized(types.TierLocal, report.LocalNormalized)
		m.metrics.RecordEviction(types.TierRemote, report.RemoteEvicted)
		m.metrics.RecordMaintenance(report.Duration, report.Err())
	}

	m.logger.Info("maintenance pass finished",
		"user", userID,
		"remote_expired", report.RemoteExpired,
		"local_expired", report.LocalExpired,
		"remote_normalized", report.RemoteNormalized,
		"local_normalized", report.LocalNormalized,
		"remote_evicted", report.RemoteEvicted,
		"failed_steps", len(report.Errors),
		"duration", report.Duration,
	)
	return report
}

func (m *Maintainer) fail(report *types.MaintenanceReport, step, tier string, err error) {
	m.logger.Warn("maintenance step failed", "user", report.UserID, "step", step, "tier", tier, "error", err)
	if m.metrics != nil {
		m.metrics.RecordError(tier, step, err)
	}
	report.Errors = append(report.Errors, types.NewCacheError(step, "", tier, err))
}

func (m *Maintainer) expire(ctx context.Context, userID string, now time.Time, report *types.MaintenanceReport) {
	removed, err := guarded(ctx, m.guard, func(ctx context.Context) (int64, error) {
		return m.remote.DeleteExpired(ctx, userID, now)
	})
	if err != nil {
		m.fail(report, "expire", types.TierRemote, err)
	}
	report.RemoteExpired = removed

	local, err := m.local.RemoveExpired(ctx, userID, now)
	if err != nil {
		m.fail(report, "expire", types.TierLocal, err)
	}
	report.LocalExpired = local
}

func (m *Maintainer) normalizeRemote(ctx context.Context, userID string, report *types.MaintenanceReport) {
	rows, err := guarded(ctx, m.guard, func(ctx context.Context) ([]types.RemoteEntry, error) {
		return m.remote.List(ctx, userID)
	})
	if err != nil {
		m.fail(report, "normalize", types.TierRemote, err)
		return
	}

	for i := range rows {
		row := &rows[i]
		data, compressed, changed, err := m.repair(row.Data, row.Compressed)
		if err != nil {
			m.logger.Debug("skipping undecodable remote row", "user", userID, "id", row.ID, "error", err)
			continue
		}
		if !changed {
			continue
		}
		row.Data, row.Compressed = data, compressed
		if err := m.guard.do(ctx, func(ctx context.Context) error {
			return m.remote.Update(ctx, row)
		}); err != nil {
			m.fail(report, "normalize", types.TierRemote, err)
			return
		}
		report.RemoteNormalized++
	}
}

func (m *Maintainer) normalizeLocal(ctx context.Context, userID string, report *types.MaintenanceReport) {
	n, err := m.local.Rewrite(ctx, userID, func(entries []types.LocalEntry) ([]types.LocalEntry, int) {
		changed := 0
		for i := range entries {
			data, compressed, ok, err := m.repair(entries[i].Data, entries[i].Compressed)
			if err != nil || !ok {
				continue
			}
			entries[i].Data, entries[i].Compressed = data, compressed
			changed++
		}
		return entries, changed
	})
	if err != nil {
		m.fail(report, "normalize", types.TierLocal, err)
	}
	report.LocalNormalized = n
}

// repair flattens nested brand or category values and re-encodes the
// payload. changed is false when the payload is already flat.
func (m *Maintainer) repair(payload json.RawMessage, compressed bool) (json.RawMessage, bool, bool, error) {
	raw, err := m.codec.Decode(payload, compressed)
	if err != nil {
		return nil, false, false, err
	}
	if !types.NeedsNormalization(raw) {
		return payload, compressed, false, nil
	}
	pd, err := types.NormalizeProductData(raw)
	if err != nil {
		return nil, false, false, err
	}
	flat, err := json.Marshal(pd)
	if err != nil {
		return nil, false, false, err
	}
	data, isCompressed, err := m.codec.Encode(flat)
	if err != nil {
		return nil, false, false, err
	}
	return data, isCompressed, true, nil
}

func (m *Maintainer) trimRemote(ctx context.Context, userID string, report *types.MaintenanceReport) {
	if m.maxRemote <= 0 {
		return
	}
	count, err := guarded(ctx, m.guard, func(ctx context.Context) (int64, error) {
		return m.remote.Count(ctx, userID)
	})
	if err != nil {
		m.fail(report, "trim", types.TierRemote, err)
		return
	}
	excess := int(count) - m.maxRemote
	if excess <= 0 {
		return
	}

	ids, err := guarded(ctx, m.guard, func(ctx context.Context) ([]string, error) {
		return m.remote.OldestIDs(ctx, userID, excess)
	})
	if err != nil {
		m.fail(report, "trim", types.TierRemote, err)
		return
	}
	for _, id := range ids {
		if err := m.guard.do(ctx, func(ctx context.Context) error {
			return m.remote.Delete(ctx, userID, id)
		}); err != nil {
			m.fail(report, "trim", types.TierRemote, err)
			return
		}
		report.RemoteEvicted++
	}
}

// Start runs due passes for every tracked user each BackgroundInterval
// until Stop. It does nothing when BackgroundInterval is not positive.
func (m *Maintainer) Start(ctx context.Context) {
	if m.cfg.BackgroundInterval <= 0 {
		return
	}
	m.wg.Add(1)
	go m.loop(ctx)
	m.logger.Info("background maintenance started", "interval", m.cfg.BackgroundInterval)
}

func (m *Maintainer) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.BackgroundInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			for _, userID := range m.trackedUsers() {
				if ctx.Err() != nil {
					return
				}
				m.RunIfDue(ctx, userID)
			}
		}
	}
}

func (m *Maintainer) trackedUsers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]string, 0, len(m.users))
	for u := range m.users {
		users = append(users, u)
	}
	return users
}

// Stop ends the background worker and waits for the current pass.
func (m *Maintainer) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}
