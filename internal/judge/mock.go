package judge

import (
	"context"
	"sync/atomic"

	"github.com/pgquest/questeval/internal/models"
)

// MockArgs configures the mock judge.
type MockArgs struct {
	Status string `mapstructure:"status"`
	Notes  string `mapstructure:"notes"`
}

// MockJudge returns a fixed verdict. Used in tests and for exercising the
// judge plumbing without an API key.
type MockJudge struct {
	status models.Status
	notes  string
	calls  atomic.Int64

	// Err, when set, is returned from every judgment.
	Err error
}

// NewMockJudge creates a mock judge. An empty status defaults to success.
func NewMockJudge(args MockArgs) *MockJudge {
	status := models.Status(args.Status)
	if status == "" {
		status = models.StatusSuccess
	}
	return &MockJudge{status: status, notes: args.Notes}
}

// Name implements [Judge].
func (m *MockJudge) Name() string { return "mock" }

// Judge implements [Judge].
func (m *MockJudge) Judge(ctx context.Context, content, output string) (*models.Verdict, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	return &models.Verdict{Status: m.status, Notes: m.notes}, nil
}

// Calls reports how many judgments have been requested.
func (m *MockJudge) Calls() int64 {
	return m.calls.Load()
}

// Ensure MockJudge satisfies Judge.
var _ Judge = (*MockJudge)(nil)
