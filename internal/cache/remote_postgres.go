package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LavishGent/scancache/internal/config"
	"github.com/LavishGent/scancache/internal/migrations"
	"github.com/LavishGent/scancache/internal/types"
)

const (
	pgSelectColumns = `id::text, user_id, barcode, product_data, compressed, source, confidence_score, expires_at, created_at`

	pgFindLatest = `SELECT ` + pgSelectColumns + ` FROM barcode_cache
		WHERE user_id = $1 AND barcode = $2
		ORDER BY created_at DESC LIMIT 1`
	pgList = `SELECT ` + pgSelectColumns + ` FROM barcode_cache
		WHERE user_id = $1 ORDER BY created_at ASC`
	pgCount     = `SELECT COUNT(*) FROM barcode_cache WHERE user_id = $1`
	pgOldestIDs = `SELECT id::text FROM barcode_cache
		WHERE user_id = $1 ORDER BY created_at ASC LIMIT $2`
	pgInsert = `INSERT INTO barcode_cache
		(id, user_id, barcode, product_data, compressed, source, confidence_score, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	pgUpdate = `UPDATE barcode_cache
		SET barcode = $3, product_data = $4, compressed = $5, source = $6,
		    confidence_score = $7, expires_at = $8, created_at = $9
		WHERE id = $1 AND user_id = $2`
	pgDelete        = `DELETE FROM barcode_cache WHERE id = $1 AND user_id = $2`
	pgDeleteExpired = `DELETE FROM barcode_cache WHERE user_id = $1 AND expires_at < $2`
	pgDeleteAll     = `DELETE FROM barcode_cache WHERE user_id = $1`
)

// PostgresRemoteStore keeps remote rows in the barcode_cache table.
type PostgresRemoteStore struct {
	pool      *pgxpool.Pool
	logger    *slog.Logger
	available atomic.Bool
}

// NewPostgresRemoteStore opens a connection pool and, when configured,
// migrates the schema first.
func NewPostgresRemoteStore(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) (*PostgresRemoteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "remote-postgres")

	dsn := cfg.DSN.Value()
	if cfg.RunMigrations {
		if err := migrate(dsn, logger); err != nil {
			return nil, err
		}
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	s := &PostgresRemoteStore{pool: pool, logger: logger}
	if err := pool.Ping(ctx); err != nil {
		logger.Warn("Postgres initial ping failed", "error", err)
	} else {
		s.available.Store(true)
		logger.Info("Postgres connected")
	}
	return s, nil
}

// NewPostgresRemoteStoreWithPool wraps an existing pool. The schema must
// already exist.
func NewPostgresRemoteStoreWithPool(pool *pgxpool.Pool, logger *slog.Logger) *PostgresRemoteStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PostgresRemoteStore{pool: pool, logger: logger.With("component", "remote-postgres")}
	s.available.Store(true)
	return s
}

func migrate(dsn string, logger *slog.Logger) error {
	m, err := migrations.New(dsn, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			logger.Warn("closing migrator failed", "error", cerr)
		}
	}()
	return m.Up()
}

func (s *PostgresRemoteStore) Name() string      { return "postgres" }
func (s *PostgresRemoteStore) IsAvailable() bool { return s.available.Load() }

func (s *PostgresRemoteStore) result(op, key string, err error) error {
	if err == nil {
		s.available.Store(true)
		return nil
	}
	s.logger.Debug("postgres operation failed", "op", op, "error", err)
	return types.BackendError(op, key, err)
}

func (s *PostgresRemoteStore) FindLatest(ctx context.Context, userID, barcode string) (*types.RemoteEntry, error) {
	if userID == "" {
		return nil, types.ErrUnauthenticated
	}
	entry, err := scanEntry(s.pool.QueryRow(ctx, pgFindLatest, userID, barcode))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, s.result("FindLatest", barcode, err)
	}
	s.available.Store(true)
	return entry, nil
}

func (s *PostgresRemoteStore) Count(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, types.ErrUnauthenticated
	}
	var n int64
	if err := s.pool.QueryRow(ctx, pgCount, userID).Scan(&n); err != nil {
		return 0, s.result("Count", "", err)
	}
	return n, s.result("Count", "", nil)
}

func (s *PostgresRemoteStore) OldestIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	if userID == "" {
		return nil, types.ErrUnauthenticated
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, pgOldestIDs, userID, limit)
	if err != nil {
		return nil, s.result("OldestIDs", "", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, s.result("OldestIDs", "", err)
	}
	return ids, s.result("OldestIDs", "", nil)
}

func (s *PostgresRemoteStore) List(ctx context.Context, userID string) ([]types.RemoteEntry, error) {
	if userID == "" {
		return nil, types.ErrUnauthenticated
	}
	rows, err := s.pool.Query(ctx, pgList, userID)
	if err != nil {
		return nil, s.result("List", "", err)
	}
	defer rows.Close()

	var entries []types.RemoteEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, s.result("List", "", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, s.result("List", "", err)
	}
	return entries, s.result("List", "", nil)
}

func (s *PostgresRemoteStore) Insert(ctx context.Context, entry *types.RemoteEntry) error {
	if entry.UserID == "" {
		return types.ErrUnauthenticated
	}
	_, err := s.pool.Exec(ctx, pgInsert,
		entry.ID, entry.UserID, entry.Barcode, []byte(entry.Data), entry.Compressed,
		string(entry.Source), entry.ConfidenceScore, entry.ExpiresAt, entry.CreatedAt)
	return s.result("Insert", entry.Barcode, err)
}

func (s *PostgresRemoteStore) Update(ctx context.Context, entry *types.RemoteEntry) error {
	if entry.UserID == "" {
		return types.ErrUnauthenticated
	}
	tag, err := s.pool.Exec(ctx, pgUpdate,
		entry.ID, entry.UserID, entry.Barcode, []byte(entry.Data), entry.Compressed,
		string(entry.Source), entry.ConfidenceScore, entry.ExpiresAt, entry.CreatedAt)
	if err != nil {
		return s.result("Update", entry.Barcode, err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return s.result("Update", entry.Barcode, nil)
}

func (s *PostgresRemoteStore) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return types.ErrUnauthenticated
	}
	_, err := s.pool.Exec(ctx, pgDelete, id, userID)
	return s.result("Delete", id, err)
}

func (s *PostgresRemoteStore) DeleteExpired(ctx context.Context, userID string, now time.Time) (int64, error) {
	if userID == "" {
		return 0, types.ErrUnauthenticated
	}
	tag, err := s.pool.Exec(ctx, pgDeleteExpired, userID, now)
	if err != nil {
		return 0, s.result("DeleteExpired", "", err)
	}
	return tag.RowsAffected(), s.result("DeleteExpired", "", nil)
}

func (s *PostgresRemoteStore) DeleteAll(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, types.ErrUnauthenticated
	}
	tag, err := s.pool.Exec(ctx, pgDeleteAll, userID)
	if err != nil {
		return 0, s.result("DeleteAll", "", err)
	}
	return tag.RowsAffected(), s.result("DeleteAll", "", nil)
}

func (s *PostgresRemoteStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		s.available.Store(false)
		return err
	}
	s.available.Store(true)
	return nil
}

func (s *PostgresRemoteStore) Close() error {
	s.available.Store(false)
	s.pool.Close()
	return nil
}

func scanEntry(row pgx.Row) (*types.RemoteEntry, error) {
	var (
		e      types.RemoteEntry
		data   []byte
		source string
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Barcode, &data, &e.Compressed,
		&source, &e.ConfidenceScore, &e.ExpiresAt, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Data = data
	e.Source = types.Source(source)
	return &e, nil
}

var _ types.RemoteStore = (*PostgresRemoteStore)(nil)
