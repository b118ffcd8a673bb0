// Package models defines the shared data structures for quest evaluation:
// statuses, execution results, judge verdicts, evaluation records, and the
// batch manifest.
package models

import "time"

// Status classifies the outcome of one quest execution.
type Status string

// Status constants
const (
	// StatusSuccess means every statement in the quest executed cleanly.
	StatusSuccess Status = "success"

	// StatusFailure means a statement failed for a content reason, such as
	// a syntax error or a violated constraint.
	StatusFailure Status = "failure"

	// StatusTimeout means execution exceeded the configured time limit.
	StatusTimeout Status = "timeout"

	// StatusError means the environment broke, not the quest: lost
	// connections, exhausted resources, a database that went away.
	StatusError Status = "error"
)

// Recordable reports whether the status is a verdict about the quest
// content itself. Infrastructure errors are not recordable: they say
// nothing about the quest and must never be cached or persisted as its
// outcome.
func (s Status) Recordable() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusTimeout:
		return true
	}
	return false
}

// QuestFile is one discovered quest: a SQL teaching script on disk.
type QuestFile struct {
	Path        string `json:"path"`
	Content     []byte `json:"-"`
	Fingerprint string `json:"fingerprint"`
}

// ExecutionResult captures the outcome of running one quest in the sandbox.
// Verdict is set by the orchestrator after judging, before the result is
// cached; a cache hit carries the stored verdict so identical content is
// never judged twice.
type ExecutionResult struct {
	Fingerprint   string   `json:"fingerprint"`
	Status        Status   `json:"status"`
	DurationMs    int64    `json:"duration_ms"`
	StdoutExcerpt string   `json:"stdout_excerpt,omitempty"`
	ErrorMessage  string   `json:"error_message,omitempty"`
	Verdict       *Verdict `json:"verdict,omitempty"`
}

// Verdict is an AI judge's quality assessment of a quest.
type Verdict struct {
	Status Status `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// EvaluationRecord is the durable row stored per quest path. Each upsert
// replaces the whole record.
type EvaluationRecord struct {
	Path            string    `db:"path" json:"path"`
	Fingerprint     string    `db:"fingerprint" json:"fingerprint"`
	Status          Status    `db:"status" json:"status"`
	DurationMs      int64     `db:"duration_ms" json:"duration_ms"`
	ErrorMessage    string    `db:"error_message" json:"error_message,omitempty"`
	JudgeStatus     string    `db:"judge_status" json:"judge_status,omitempty"`
	JudgeNotes      string    `db:"judge_notes" json:"judge_notes,omitempty"`
	LastEvaluatedAt time.Time `db:"last_evaluated_at" json:"last_evaluated_at"`
}
