package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pgquest/questeval/internal/models"
)

// MockExecutor is a scriptable in-memory implementation for testing. Paths
// can be given fixed outcomes; everything else succeeds.
type MockExecutor struct {
	mu sync.Mutex

	// Outcomes maps a quest path to its scripted result status.
	Outcomes map[string]models.Status

	// Errs maps a quest path to an error returned from Execute, for
	// simulating infrastructure failures.
	Errs map[string]error

	// Delay is applied to every execution before it completes.
	Delay time.Duration

	executed    []string
	initialized bool
	shutdown    bool
}

// NewMockExecutor creates a mock with no scripted outcomes.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		Outcomes: make(map[string]models.Status),
		Errs:     make(map[string]error),
	}
}

func (m *MockExecutor) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	return nil
}

func (m *MockExecutor) Execute(ctx context.Context, req *ExecutionRequest) (*models.ExecutionResult, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	m.executed = append(m.executed, req.Path)
	scriptedErr := m.Errs[req.Path]
	status, scripted := m.Outcomes[req.Path]
	m.mu.Unlock()

	if scriptedErr != nil {
		return nil, scriptedErr
	}
	if !scripted {
		status = models.StatusSuccess
	}

	result := &models.ExecutionResult{
		Fingerprint: req.Fingerprint,
		Status:      status,
		DurationMs:  m.Delay.Milliseconds(),
	}
	switch status {
	case models.StatusFailure:
		result.ErrorMessage = fmt.Sprintf("mock failure for %s", req.Path)
	case models.StatusTimeout:
		result.ErrorMessage = fmt.Sprintf("execution exceeded timeout of %v", req.Timeout)
	default:
		result.StdoutExcerpt = fmt.Sprintf("mock output for %s", req.Path)
	}

	return result, nil
}

func (m *MockExecutor) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = true
	return nil
}

// Executed returns the paths executed so far, in completion order.
func (m *MockExecutor) Executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.executed))
	copy(out, m.executed)
	return out
}

// ExecutedCount returns how many executions ran.
func (m *MockExecutor) ExecutedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.executed)
}

// Ensure MockExecutor satisfies Executor.
var _ Executor = (*MockExecutor)(nil)
