package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pgquest/questeval/internal/models"
)

// FormatSummary produces the plain-text batch report printed at the end of
// a run.
func FormatSummary(summary *models.BatchSummary) string {
	var b strings.Builder

	duration := time.Duration(summary.DurationMs) * time.Millisecond

	b.WriteString(fmt.Sprintf("=== Batch: %s ===\n\n", summary.BatchName))
	b.WriteString(fmt.Sprintf("Quests:    %d total, %d passed, %d failed, %d timed out\n",
		summary.Total, summary.Passed, summary.Failed, summary.Timeouts))
	if summary.SkippedCached > 0 {
		b.WriteString(fmt.Sprintf("Cached:    %d reused without execution\n", summary.SkippedCached))
	}
	b.WriteString(fmt.Sprintf("Pass Rate: %.1f%%\n", summary.SuccessRate()*100))
	b.WriteString(fmt.Sprintf("Duration:  %v\n", duration))

	if summary.HasFailures() {
		b.WriteString("\nFailures:\n")
		for _, o := range summary.QuestOutcomes {
			if o.Result.Status == models.StatusSuccess {
				continue
			}
			b.WriteString(fmt.Sprintf("  ✗ %s [%s]\n", o.Path, o.Result.Status))
			if msg := firstLine(o.Result.ErrorMessage); msg != "" {
				b.WriteString(fmt.Sprintf("      %s\n", msg))
			}
		}
	}

	judged := 0
	judgeFailed := 0
	for _, o := range summary.QuestOutcomes {
		if o.Verdict != nil {
			judged++
			if o.Verdict.Status != models.StatusSuccess {
				judgeFailed++
			}
		}
	}
	if judged > 0 {
		b.WriteString(fmt.Sprintf("\nJudge:     %d judged, %d flagged\n", judged, judgeFailed))
		for _, o := range summary.QuestOutcomes {
			if o.Verdict == nil || o.Verdict.Status == models.StatusSuccess {
				continue
			}
			b.WriteString(fmt.Sprintf("  ⚑ %s: %s\n", o.Path, firstLine(o.Verdict.Notes)))
		}
	}

	return b.String()
}

// FormatProgressLine renders one quest completion for streaming output.
func FormatProgressLine(path string, status models.Status, durationMs int64, cached bool) string {
	icon := "✓"
	if status != models.StatusSuccess {
		icon = "✗"
	}
	suffix := fmt.Sprintf("%dms", durationMs)
	if cached {
		suffix = "cached"
	}
	return fmt.Sprintf("%s %s [%s, %s]", icon, path, status, suffix)
}

// WriteJSON writes the full batch summary as indented JSON.
func WriteJSON(summary *models.BatchSummary, path string) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
