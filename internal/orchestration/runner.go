// Package orchestration drives batch evaluation of quest files: discovery,
// fingerprinting, cache consultation, sandbox execution, judging, and
// persistence, in sequential or bounded-parallel mode.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pgquest/questeval/internal/cache"
	"github.com/pgquest/questeval/internal/discovery"
	"github.com/pgquest/questeval/internal/fingerprint"
	"github.com/pgquest/questeval/internal/judge"
	"github.com/pgquest/questeval/internal/models"
	"github.com/pgquest/questeval/internal/sandbox"
	"github.com/pgquest/questeval/internal/store"
)

// BatchRunner orchestrates the evaluation of a batch of quest files.
type BatchRunner struct {
	manifest *models.BatchManifest
	baseDir  string
	executor sandbox.Executor

	cache cache.ResultCache
	store *store.EvaluationStore
	judge judge.Judge

	// Progress tracking
	progressMu sync.Mutex
	listeners  []ProgressListener
}

// ProgressListener receives progress updates.
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event.
type EventType string

// EventType constants
const (
	EventBatchStart    EventType = "batch_start"
	EventBatchComplete EventType = "batch_complete"
	EventBatchAborted  EventType = "batch_aborted"
	EventQuestStart    EventType = "quest_start"
	EventQuestComplete EventType = "quest_complete"
	EventQuestCached   EventType = "quest_cached"
)

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	EventType   EventType
	QuestPath   string
	QuestNum    int
	TotalQuests int
	Status      models.Status
	DurationMs  int64
	Details     map[string]any
}

// RunnerOption configures a BatchRunner.
type RunnerOption func(*BatchRunner)

// WithCache enables result caching.
func WithCache(c cache.ResultCache) RunnerOption {
	return func(r *BatchRunner) {
		r.cache = c
	}
}

// WithStore enables durable persistence of evaluation records.
func WithStore(s *store.EvaluationStore) RunnerOption {
	return func(r *BatchRunner) {
		r.store = s
	}
}

// WithJudge enables AI quality judgment of successful quests.
func WithJudge(j judge.Judge) RunnerOption {
	return func(r *BatchRunner) {
		r.judge = j
	}
}

// NewBatchRunner creates a new batch runner. Quest patterns in the manifest
// are resolved relative to baseDir.
func NewBatchRunner(manifest *models.BatchManifest, baseDir string, executor sandbox.Executor, opts ...RunnerOption) *BatchRunner {
	r := &BatchRunner{
		manifest:  manifest,
		baseDir:   baseDir,
		executor:  executor,
		listeners: []ProgressListener{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener.
func (r *BatchRunner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *BatchRunner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run evaluates the whole batch. Per-quest failures and timeouts are
// recorded in the summary and never abort the batch; infrastructure errors
// abort immediately and are returned wrapped in sandbox.ErrInfrastructure.
func (r *BatchRunner) Run(ctx context.Context) (*models.BatchSummary, error) {
	startTime := time.Now()

	if err := r.executor.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize executor: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.executor.Shutdown(shutdownCtx); err != nil {
			slog.Warn("executor shutdown failed", "error", err)
		}
	}()

	paths, err := discovery.Expand(r.baseDir, r.manifest.Quests)
	if err != nil {
		return nil, fmt.Errorf("resolving quest patterns: %w", err)
	}

	r.notifyProgress(ProgressEvent{
		EventType:   EventBatchStart,
		TotalQuests: len(paths),
	})

	var outcomes []models.QuestOutcome
	var runErr error

	if r.manifest.Parallel {
		outcomes, runErr = r.runConcurrent(ctx, paths)
	} else {
		outcomes, runErr = r.runSequential(ctx, paths)
	}

	if runErr != nil {
		r.notifyProgress(ProgressEvent{
			EventType: EventBatchAborted,
			Details:   map[string]any{"reason": runErr.Error()},
		})
		return nil, runErr
	}

	summary := r.buildSummary(outcomes, startTime)

	r.notifyProgress(ProgressEvent{
		EventType:  EventBatchComplete,
		DurationMs: summary.DurationMs,
	})

	return summary, nil
}

func (r *BatchRunner) runSequential(ctx context.Context, paths []string) ([]models.QuestOutcome, error) {
	outcomes := make([]models.QuestOutcome, 0, len(paths))

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch cancelled: %w", err)
		}

		outcome, err := r.runQuest(ctx, path, i+1, len(paths))
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, *outcome)
	}

	return outcomes, nil
}

func (r *BatchRunner) runConcurrent(ctx context.Context, paths []string) ([]models.QuestOutcome, error) {
	workers := r.manifest.Workers
	if workers <= 0 {
		workers = models.DefaultWorkers
	}

	results := make([]models.QuestOutcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		g.Go(func() error {
			// Stop dispatching once a worker has hit an infrastructure
			// error; in-flight quests run to completion on their own.
			if err := gctx.Err(); err != nil {
				return err
			}

			outcome, err := r.runQuest(gctx, path, i+1, len(paths))
			if err != nil {
				return err
			}
			results[i] = *outcome
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// runQuest evaluates a single quest file. A non-nil error means an
// infrastructure problem and aborts the batch; everything else, including
// SQL failures and timeouts, is captured in the returned outcome.
func (r *BatchRunner) runQuest(ctx context.Context, path string, questNum, totalQuests int) (*models.QuestOutcome, error) {
	r.notifyProgress(ProgressEvent{
		EventType:   EventQuestStart,
		QuestPath:   path,
		QuestNum:    questNum,
		TotalQuests: totalQuests,
	})

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading quest %s: %w", sandbox.ErrInfrastructure, path, err)
	}
	fp := fingerprint.Sum(content)

	result, cached := r.lookupCached(fp)
	if !cached {
		result, err = r.executor.Execute(ctx, &sandbox.ExecutionRequest{
			Path:        path,
			Content:     content,
			Fingerprint: fp,
			Timeout:     time.Duration(r.manifest.TimeoutSec) * time.Second,
		})
		if err != nil {
			if errors.Is(err, sandbox.ErrInfrastructure) {
				return nil, fmt.Errorf("executing quest %s: %w", path, err)
			}
			return nil, fmt.Errorf("%w: executing quest %s: %w", sandbox.ErrInfrastructure, path, err)
		}
		if result.Status == models.StatusError {
			return nil, fmt.Errorf("%w: quest %s: %s", sandbox.ErrInfrastructure, path, result.ErrorMessage)
		}

		// Judging happens before the cache write so the verdict is stored
		// with the result; a hit reuses it instead of paying for another
		// judge call on identical content.
		if r.judge != nil && result.Status == models.StatusSuccess {
			verdict, jerr := r.judge.Judge(ctx, string(content), result.StdoutExcerpt)
			if jerr != nil {
				slog.Warn("judge failed, recording no verdict", "quest", path, "error", jerr)
			} else {
				result.Verdict = verdict
			}
		}

		if r.cache != nil && result.Status.Recordable() {
			if err := r.cache.Put(fp, result); err != nil {
				slog.Warn("failed to write result cache", "quest", path, "error", err)
			}
		}
	}

	outcome := &models.QuestOutcome{
		Path:        path,
		Fingerprint: fp,
		Result:      *result,
		Cached:      cached,
		Verdict:     result.Verdict,
	}

	if err := r.persist(ctx, outcome); err != nil {
		return nil, err
	}

	eventType := EventQuestComplete
	if cached {
		eventType = EventQuestCached
	}
	r.notifyProgress(ProgressEvent{
		EventType:   eventType,
		QuestPath:   path,
		QuestNum:    questNum,
		TotalQuests: totalQuests,
		Status:      result.Status,
		DurationMs:  result.DurationMs,
	})

	return outcome, nil
}

// lookupCached consults the result cache. Corrupt or missing entries count
// as misses.
func (r *BatchRunner) lookupCached(fp string) (*models.ExecutionResult, bool) {
	if r.cache == nil {
		return nil, false
	}
	result, found := r.cache.Get(fp)
	if !found {
		return nil, false
	}
	return result, true
}

// persist upserts the evaluation record for one quest. Store write failures
// are infrastructure errors: a batch whose results cannot be recorded must
// not report success.
func (r *BatchRunner) persist(ctx context.Context, outcome *models.QuestOutcome) error {
	if r.store == nil {
		return nil
	}

	record := &models.EvaluationRecord{
		Path:            outcome.Path,
		Fingerprint:     outcome.Fingerprint,
		Status:          outcome.Result.Status,
		DurationMs:      outcome.Result.DurationMs,
		ErrorMessage:    outcome.Result.ErrorMessage,
		LastEvaluatedAt: time.Now().UTC(),
	}
	if outcome.Verdict != nil {
		record.JudgeStatus = string(outcome.Verdict.Status)
		record.JudgeNotes = outcome.Verdict.Notes
	}

	if err := r.store.Upsert(ctx, record); err != nil {
		return fmt.Errorf("%w: persisting record for %s: %w", sandbox.ErrInfrastructure, outcome.Path, err)
	}
	return nil
}

func (r *BatchRunner) buildSummary(outcomes []models.QuestOutcome, startTime time.Time) *models.BatchSummary {
	summary := &models.BatchSummary{
		RunID:         fmt.Sprintf("run-%d", startTime.Unix()),
		BatchName:     r.manifest.Name,
		Timestamp:     startTime,
		Total:         len(outcomes),
		DurationMs:    time.Since(startTime).Milliseconds(),
		QuestOutcomes: outcomes,
	}

	for _, o := range outcomes {
		switch o.Result.Status {
		case models.StatusSuccess:
			summary.Passed++
		case models.StatusFailure:
			summary.Failed++
		case models.StatusTimeout:
			summary.Timeouts++
		}
		if o.Cached {
			summary.SkippedCached++
		}
	}

	return summary
}

// IsInfrastructureError reports whether err came from the environment
// rather than from quest content.
func IsInfrastructureError(err error) bool {
	return errors.Is(err, sandbox.ErrInfrastructure)
}
