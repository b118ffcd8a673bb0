package sandbox

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sethvargo/go-retry"

	"github.com/pgquest/questeval/internal/models"
)

const (
	// excerptLimit caps stored stdout/error text so cache entries and
	// evaluation records stay small.
	excerptLimit = 4096

	// cleanupTimeout bounds the DROP SCHEMA that runs after every
	// execution, including timed-out ones.
	cleanupTimeout = 10 * time.Second

	connectAttempts = 5
)

// PostgresExecutor runs quest SQL against a PostgreSQL database. Every
// Execute call gets its own connection and its own schema; the shared pool
// is only used for schema cleanup so a wedged quest connection can never
// block the next execution.
type PostgresExecutor struct {
	dsn string

	mu   sync.Mutex
	pool *sqlx.DB
}

// NewPostgresExecutor creates an executor for the given connection string.
// No connection is made until Initialize.
func NewPostgresExecutor(dsn string) *PostgresExecutor {
	return &PostgresExecutor{dsn: dsn}
}

// Initialize connects to the database, retrying with fibonacci backoff so a
// database that is still starting up does not immediately fail the batch.
func (e *PostgresExecutor) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pool != nil {
		return nil
	}

	backoff := retry.WithMaxRetries(connectAttempts, retry.NewFibonacci(500*time.Millisecond))
	var pool *sqlx.DB
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		db, err := sqlx.ConnectContext(ctx, "postgres", e.dsn)
		if err != nil {
			return retry.RetryableError(err)
		}
		pool = db
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: connecting to %s: %v", ErrInfrastructure, redactDSN(e.dsn), err)
	}

	e.pool = pool
	return nil
}

// Shutdown closes the connection pool.
func (e *PostgresExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pool == nil {
		return nil
	}
	err := e.pool.Close()
	e.pool = nil
	return err
}

// Execute runs one quest inside a fresh schema. The schema is dropped with
// CASCADE afterwards regardless of outcome, so leftover objects from a
// failed or timed-out quest cannot leak into later executions.
func (e *PostgresExecutor) Execute(ctx context.Context, req *ExecutionRequest) (*models.ExecutionResult, error) {
	e.mu.Lock()
	pool := e.pool
	e.mu.Unlock()
	if pool == nil {
		return nil, fmt.Errorf("%w: executor not initialized", ErrInfrastructure)
	}
	if req.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", req.Timeout)
	}

	schema := newSchemaName()
	notices := &noticeBuffer{}

	conn, err := e.openQuestConn(ctx, notices)
	if err != nil {
		return nil, fmt.Errorf("%w: opening quest connection: %v", ErrInfrastructure, err)
	}
	defer conn.Close() //nolint:errcheck

	// Cleanup runs on the shared pool, not the quest connection: a quest
	// connection left mid-transaction after a cancel cannot run DDL.
	defer e.dropSchema(schema)

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", pq.QuoteIdentifier(schema))); err != nil {
		return nil, fmt.Errorf("%w: creating sandbox schema: %v", ErrInfrastructure, err)
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", pq.QuoteIdentifier(schema))); err != nil {
		return nil, fmt.Errorf("%w: setting search_path: %v", ErrInfrastructure, err)
	}

	execCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	start := time.Now()
	_, execErr := conn.ExecContext(execCtx, string(req.Content))
	elapsed := time.Since(start).Milliseconds()

	result := &models.ExecutionResult{
		Fingerprint:   req.Fingerprint,
		DurationMs:    elapsed,
		StdoutExcerpt: truncate(notices.String(), excerptLimit),
	}

	switch classify(execCtx, execErr) {
	case models.StatusSuccess:
		result.Status = models.StatusSuccess
	case models.StatusTimeout:
		result.Status = models.StatusTimeout
		result.ErrorMessage = fmt.Sprintf("execution exceeded timeout of %v", req.Timeout)
	case models.StatusFailure:
		result.Status = models.StatusFailure
		result.ErrorMessage = truncate(sqlErrorText(execErr), excerptLimit)
	default:
		return nil, fmt.Errorf("%w: %v", ErrInfrastructure, execErr)
	}

	return result, nil
}

// questConn is a dedicated single connection for one quest. Closing it
// closes both the connection and its private one-connection pool.
type questConn struct {
	*sql.Conn
	db *sql.DB
}

func (q *questConn) Close() error {
	connErr := q.Conn.Close()
	dbErr := q.db.Close()
	if connErr != nil {
		return connErr
	}
	return dbErr
}

// openQuestConn opens a dedicated single connection for one quest, with a
// notice handler that captures RAISE NOTICE output from teaching scripts.
func (e *PostgresExecutor) openQuestConn(ctx context.Context, notices *noticeBuffer) (*questConn, error) {
	connector, err := pq.NewConnector(e.dsn)
	if err != nil {
		return nil, err
	}
	handled := pq.ConnectorWithNoticeHandler(connector, func(n *pq.Error) {
		notices.append(n.Message)
	})

	db := sql.OpenDB(handled)
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &questConn{Conn: conn, db: db}, nil
}

// dropSchema removes a sandbox schema on the shared pool with its own
// deadline, so cleanup still happens after batch-level cancellation.
func (e *PostgresExecutor) dropSchema(schema string) {
	e.mu.Lock()
	pool := e.pool
	e.mu.Unlock()
	if pool == nil {
		return
	}

	cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	stmt := fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pq.QuoteIdentifier(schema))
	if _, err := pool.ExecContext(cleanupCtx, stmt); err != nil {
		// The schema is orphaned but uniquely named, so it cannot collide
		// with or leak into later executions.
		slog.Warn("failed to drop sandbox schema", "schema", schema, "error", err)
	}
}

// classify maps an execution error onto a result status. StatusError means
// the error is infrastructural and must be escalated.
func classify(execCtx context.Context, err error) models.Status {
	if err == nil {
		return models.StatusSuccess
	}

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return models.StatusTimeout
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 57014 is query_canceled; it surfaces when the server cancels the
		// statement on our behalf.
		if pqErr.Code == "57014" {
			return models.StatusTimeout
		}
		switch pqErr.Code.Class() {
		case "08", "53", "57", "58", "XX":
			// connection exceptions, resource exhaustion, operator
			// intervention, internal errors
			return models.StatusError
		}
		return models.StatusFailure
	}

	if errors.Is(err, driver.ErrBadConn) {
		return models.StatusError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return models.StatusError
	}

	return models.StatusError
}

// sqlErrorText renders a pq error the way psql reports it, with severity
// and position detail when present.
func sqlErrorText(err error) string {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err.Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", pqErr.Severity, pqErr.Message)
	if pqErr.Detail != "" {
		fmt.Fprintf(&b, "\nDETAIL: %s", pqErr.Detail)
	}
	if pqErr.Hint != "" {
		fmt.Fprintf(&b, "\nHINT: %s", pqErr.Hint)
	}
	if pqErr.Position != "" {
		fmt.Fprintf(&b, "\nPOSITION: %s", pqErr.Position)
	}
	return b.String()
}

func newSchemaName() string {
	return "quest_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

// redactDSN hides credentials when a connection string ends up in an error
// message.
func redactDSN(dsn string) string {
	if i := strings.Index(dsn, "@"); i >= 0 && strings.Contains(dsn, "://") {
		if j := strings.Index(dsn, "://"); j >= 0 && j < i {
			return dsn[:j+3] + "***" + dsn[i:]
		}
	}
	return dsn
}

// noticeBuffer accumulates server notices from one quest connection.
type noticeBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (n *noticeBuffer) append(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.b.WriteString(msg)
	n.b.WriteByte('\n')
}

func (n *noticeBuffer) String() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.b.String()
}

// Ensure PostgresExecutor satisfies Executor.
var _ Executor = (*PostgresExecutor)(nil)
