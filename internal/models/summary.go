package models

import "time"

// QuestOutcome pairs one quest with its execution result for reporting.
type QuestOutcome struct {
	Path        string          `json:"path"`
	Fingerprint string          `json:"fingerprint"`
	Result      ExecutionResult `json:"result"`
	Cached      bool            `json:"cached"`
	Verdict     *Verdict        `json:"verdict,omitempty"`
}

// BatchSummary is the aggregate result of one batch run.
type BatchSummary struct {
	RunID         string         `json:"run_id"`
	BatchName     string         `json:"batch_name"`
	Timestamp     time.Time      `json:"timestamp"`
	Total         int            `json:"total"`
	Passed        int            `json:"passed"`
	Failed        int            `json:"failed"`
	Timeouts      int            `json:"timeouts"`
	SkippedCached int            `json:"skipped_cached"`
	DurationMs    int64          `json:"duration_ms"`
	QuestOutcomes []QuestOutcome `json:"quests"`
}

// HasFailures reports whether any quest in the batch failed or timed out.
func (s *BatchSummary) HasFailures() bool {
	return s.Failed > 0 || s.Timeouts > 0
}

// SuccessRate returns the fraction of quests that passed, cached hits included.
func (s *BatchSummary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0.0
	}
	return float64(s.Passed) / float64(s.Total)
}
