package learn

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/belegwerk/docpipe/internal/entity"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS observations (
	id          UUID PRIMARY KEY,
	field_type  TEXT NOT NULL,
	raw_text    TEXT NOT NULL,
	corrected   TEXT NOT NULL,
	user_id     TEXT NOT NULL DEFAULT '',
	confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_observations_field_type ON observations (field_type, recorded_at);
`

// PostgresConfig holds the pool settings for the shared observation store.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// PostgresStore persists observations in a shared postgres database via a
// pgx pool wrapped as database/sql.
type PostgresStore struct {
	pool   *pgxpool.Pool
	db     *sql.DB
	logger *slog.Logger
}

func OpenPostgresStore(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to observation store", "dsn", cfg.DSN)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, storeErr("STORE_DSN", "parse postgres dsn", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "docpipe"

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, storeErr("STORE_CONNECT", "connect observation store", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, storeErr("STORE_SCHEMA", "create observation schema", err)
	}
	logger.Info("observation store connected")
	return &PostgresStore{pool: pool, db: db, logger: logger}, nil
}

func (s *PostgresStore) Close() {
	s.logger.Info("closing observation store")
	s.pool.Close()
}

// Ping verifies the connection, catching DSN issues early.
func (s *PostgresStore) Ping(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Append(ctx context.Context, obs entity.LearningObservation) error {
	if obs.ID == uuid.Nil {
		obs.ID = uuid.New()
	}
	if obs.RecordedAt.IsZero() {
		obs.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO observations (id, field_type, raw_text, corrected, user_id, confidence, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		obs.ID, string(obs.FieldType), obs.RawText, obs.CorrectedValue, obs.UserID, obs.Confidence, obs.RecordedAt)
	if err != nil {
		return storeErr("STORE_APPEND", "append observation", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, fieldType entity.FieldType) ([]entity.LearningObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, field_type, raw_text, corrected, user_id, confidence, recorded_at
		 FROM observations WHERE field_type = $1 ORDER BY recorded_at`, string(fieldType))
	if err != nil {
		return nil, storeErr("STORE_LIST", "list observations", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

func (s *PostgresStore) All(ctx context.Context) ([]entity.LearningObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, field_type, raw_text, corrected, user_id, confidence, recorded_at
		 FROM observations ORDER BY recorded_at`)
	if err != nil {
		return nil, storeErr("STORE_LIST", "list observations", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM observations`); err != nil {
		return storeErr("STORE_CLEAR", "clear observations", err)
	}
	return nil
}
