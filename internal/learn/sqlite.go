package learn

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/belegwerk/docpipe/internal/entity"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS observations (
	id          TEXT PRIMARY KEY,
	field_type  TEXT NOT NULL,
	raw_text    TEXT NOT NULL,
	corrected   TEXT NOT NULL,
	user_id     TEXT NOT NULL DEFAULT '',
	confidence  REAL NOT NULL DEFAULT 0,
	recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_observations_field_type ON observations (field_type, recorded_at);
`

// SQLiteStore persists observations in a local sqlite database. The path
// ":memory:" gives an ephemeral store.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func OpenSQLiteStore(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("opening observation store", "path", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storeErr("STORE_OPEN", "open sqlite store", err)
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, storeErr("STORE_SCHEMA", "create observation schema", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, obs entity.LearningObservation) error {
	if obs.ID == uuid.Nil {
		obs.ID = uuid.New()
	}
	if obs.RecordedAt.IsZero() {
		obs.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO observations (id, field_type, raw_text, corrected, user_id, confidence, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		obs.ID.String(), string(obs.FieldType), obs.RawText, obs.CorrectedValue, obs.UserID, obs.Confidence, obs.RecordedAt)
	if err != nil {
		return storeErr("STORE_APPEND", "append observation", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, fieldType entity.FieldType) ([]entity.LearningObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, field_type, raw_text, corrected, user_id, confidence, recorded_at
		 FROM observations WHERE field_type = ? ORDER BY recorded_at`, string(fieldType))
	if err != nil {
		return nil, storeErr("STORE_LIST", "list observations", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

func (s *SQLiteStore) All(ctx context.Context) ([]entity.LearningObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, field_type, raw_text, corrected, user_id, confidence, recorded_at
		 FROM observations ORDER BY recorded_at`)
	if err != nil {
		return nil, storeErr("STORE_LIST", "list observations", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM observations`); err != nil {
		return storeErr("STORE_CLEAR", "clear observations", err)
	}
	return nil
}

func scanObservations(rows *sql.Rows) ([]entity.LearningObservation, error) {
	var out []entity.LearningObservation
	for rows.Next() {
		var o entity.LearningObservation
		var id string
		if err := rows.Scan(&id, &o.FieldType, &o.RawText, &o.CorrectedValue, &o.UserID, &o.Confidence, &o.RecordedAt); err != nil {
			return nil, storeErr("STORE_SCAN", "scan observation", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, storeErr("STORE_SCAN", "parse observation id", err)
		}
		o.ID = parsed
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("STORE_SCAN", "iterate observations", err)
	}
	return out, nil
}
