// Package store persists the latest evaluation record per quest path in
// PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sethvargo/go-retry"

	"github.com/pgquest/questeval/internal/models"
)

// ErrRecordNotFound is returned when a path has no evaluation record.
var ErrRecordNotFound = errors.New("evaluation record not found")

const schema = `
CREATE TABLE IF NOT EXISTS evaluation_records (
	path TEXT NOT NULL PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	status TEXT NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	judge_status TEXT NOT NULL DEFAULT '',
	judge_notes TEXT NOT NULL DEFAULT '',
	last_evaluated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// upsertQuery overwrites every field atomically; a concurrent upsert to the
// same path can win or lose, but never produce a torn record.
const upsertQuery = `
INSERT INTO evaluation_records
	(path, fingerprint, status, duration_ms, error_message, judge_status, judge_notes, last_evaluated_at)
VALUES
	(:path, :fingerprint, :status, :duration_ms, :error_message, :judge_status, :judge_notes, :last_evaluated_at)
ON CONFLICT (path) DO UPDATE SET
	fingerprint = EXCLUDED.fingerprint,
	status = EXCLUDED.status,
	duration_ms = EXCLUDED.duration_ms,
	error_message = EXCLUDED.error_message,
	judge_status = EXCLUDED.judge_status,
	judge_notes = EXCLUDED.judge_notes,
	last_evaluated_at = EXCLUDED.last_evaluated_at`

// EvaluationStore is the durable record of the latest outcome per quest.
type EvaluationStore struct {
	db *sqlx.DB
}

// Open connects to the database, retrying with fibonacci backoff, and
// ensures the evaluation_records table exists.
func Open(ctx context.Context, dsn string) (*EvaluationStore, error) {
	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(500*time.Millisecond))

	var db *sqlx.DB
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
		if err != nil {
			return retry.RetryableError(err)
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to evaluation store: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating evaluation store: %w", err)
	}

	return &EvaluationStore{db: db}, nil
}

// NewWithDB wraps an existing connection, ensuring the table exists. Used
// by tests that manage their own connection.
func NewWithDB(ctx context.Context, db *sqlx.DB) (*EvaluationStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrating evaluation store: %w", err)
	}
	return &EvaluationStore{db: db}, nil
}

// Upsert writes the latest outcome for a path, replacing any prior record.
func (s *EvaluationStore) Upsert(ctx context.Context, record *models.EvaluationRecord) error {
	if record.LastEvaluatedAt.IsZero() {
		record.LastEvaluatedAt = time.Now().UTC()
	}

	if _, err := s.db.NamedExecContext(ctx, upsertQuery, record); err != nil {
		return fmt.Errorf("upserting record for %s: %w", record.Path, err)
	}
	return nil
}

// Get returns the current record for a path, or ErrRecordNotFound.
func (s *EvaluationStore) Get(ctx context.Context, path string) (*models.EvaluationRecord, error) {
	var record models.EvaluationRecord
	err := s.db.GetContext(ctx, &record,
		`SELECT * FROM evaluation_records WHERE path = $1`, path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting record for %s: %w", path, err)
	}
	return &record, nil
}

// List returns records ordered by path. An empty status returns everything;
// otherwise only records with that status. Re-querying returns current
// state, not a frozen snapshot.
func (s *EvaluationStore) List(ctx context.Context, status models.Status) ([]models.EvaluationRecord, error) {
	var records []models.EvaluationRecord
	var err error

	if status == "" {
		err = s.db.SelectContext(ctx, &records,
			`SELECT * FROM evaluation_records ORDER BY path`)
	} else {
		err = s.db.SelectContext(ctx, &records,
			`SELECT * FROM evaluation_records WHERE status = $1 ORDER BY path`, status)
	}
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

// Close releases the database connection.
func (s *EvaluationStore) Close() error {
	return s.db.Close()
}
