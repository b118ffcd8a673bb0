// Package sandbox executes quest SQL against an isolated database context.
// Each execution runs in its own ephemeral schema so one quest's objects are
// never visible to another, and cleanup happens even when a quest times out.
package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/pgquest/questeval/internal/models"
)

// ErrInfrastructure marks failures of the database itself (unreachable,
// connection dropped). These abort a batch instead of being recorded as a
// per-quest outcome.
var ErrInfrastructure = errors.New("database infrastructure unavailable")

// Executor is the interface for running quest SQL.
type Executor interface {
	// Initialize sets up the executor (connects, verifies reachability).
	Initialize(ctx context.Context) error

	// Execute runs one quest in an isolated context. SQL runtime errors and
	// timeouts are expected outcomes and come back inside the result; a
	// non-nil error is always an infrastructure problem.
	Execute(ctx context.Context, req *ExecutionRequest) (*models.ExecutionResult, error)

	// Shutdown cleans up resources.
	Shutdown(ctx context.Context) error
}

// ExecutionRequest describes one quest execution.
type ExecutionRequest struct {
	Path        string
	Content     []byte
	Fingerprint string
	Timeout     time.Duration
}
