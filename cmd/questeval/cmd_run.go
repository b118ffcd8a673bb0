package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgquest/questeval/internal/cache"
	"github.com/pgquest/questeval/internal/config"
	"github.com/pgquest/questeval/internal/discovery"
	"github.com/pgquest/questeval/internal/judge"
	"github.com/pgquest/questeval/internal/models"
	"github.com/pgquest/questeval/internal/orchestration"
	"github.com/pgquest/questeval/internal/reporting"
	"github.com/pgquest/questeval/internal/sandbox"
	"github.com/pgquest/questeval/internal/store"
	"github.com/pgquest/questeval/internal/validation"
)

var (
	outputPath   string
	junitPath    string
	verbose      bool
	parallel     bool
	workers      int
	timeoutSec   int
	enableCache  bool
	disableCache bool
	runCacheDir  string
	cacheBackend string
	noStore      bool
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [quests-dir|batch.yaml]",
		Short: "Evaluate a batch of quest files",
		Long: `Evaluate a batch of SQL quest files.

The argument is either a directory containing .sql files or a batch manifest
YAML; with no argument, the project's configured quests directory is used.
Each quest runs in a fresh database schema; failures and timeouts are
recorded per file and never stop the batch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for the batch summary")
	cmd.Flags().StringVar(&junitPath, "junit", "", "Output JUnit XML report file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output with per-quest progress")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Run quests concurrently")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent workers (default: 4, requires --parallel)")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "Per-quest timeout in seconds (overrides manifest)")
	cmd.Flags().BoolVar(&enableCache, "cache", false, "Enable result caching")
	cmd.Flags().BoolVar(&disableCache, "no-cache", false, "Disable result caching")
	cmd.Flags().StringVar(&runCacheDir, "cache-dir", "", "Cache directory for storing results")
	cmd.Flags().StringVar(&cacheBackend, "cache-backend", "", "Cache backend: file or sqlite")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Skip recording results in the evaluation store")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	target := cfg.Paths.Quests
	if len(args) > 0 {
		target = args[0]
	}

	manifest, baseDir, err := resolveBatch(target, cfg)
	if err != nil {
		return err
	}

	// CLI flags override manifest and project config
	if parallel {
		manifest.Parallel = true
	}
	if cfg.Defaults.Verbose != nil && *cfg.Defaults.Verbose {
		verbose = true
	}
	if workers > 0 {
		manifest.Workers = workers
	}
	if timeoutSec > 0 {
		manifest.TimeoutSec = timeoutSec
	}
	if manifest.Judge == nil && cfg.Defaults.JudgeKind != "" {
		manifest.Judge = &models.JudgeConfig{Kind: cfg.Defaults.JudgeKind}
	}

	dsn, err := config.DatabaseURL()
	if err != nil {
		return err
	}

	executor := sandbox.NewPostgresExecutor(dsn)

	opts := []orchestration.RunnerOption{}

	resultCache, err := buildCache(cfg)
	if err != nil {
		return err
	}
	if resultCache != nil {
		opts = append(opts, orchestration.WithCache(resultCache))
	}

	if !noStore {
		evalStore, err := store.Open(cmd.Context(), dsn)
		if err != nil {
			return fmt.Errorf("opening evaluation store: %w", err)
		}
		defer evalStore.Close()
		opts = append(opts, orchestration.WithStore(evalStore))
	}

	questJudge, err := judge.Create(manifest.Judge)
	if err != nil {
		return err
	}
	if questJudge != nil {
		opts = append(opts, orchestration.WithJudge(questJudge))
	}

	runner := orchestration.NewBatchRunner(manifest, baseDir, executor, opts...)
	runner.OnProgress(progressPrinter())

	summary, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(reporting.FormatSummary(summary))

	if outputPath != "" {
		if err := reporting.WriteJSON(summary, outputPath); err != nil {
			return fmt.Errorf("saving summary: %w", err)
		}
		fmt.Printf("\nResults saved to: %s\n", outputPath)
	}
	if junitPath != "" {
		if err := reporting.WriteJUnitXML(summary, junitPath); err != nil {
			return fmt.Errorf("saving JUnit report: %w", err)
		}
		fmt.Printf("JUnit report saved to: %s\n", junitPath)
	}

	if summary.HasFailures() {
		return &BatchFailureError{
			Message: fmt.Sprintf("%d of %d quests did not pass", summary.Failed+summary.Timeouts, summary.Total),
		}
	}
	return nil
}

// resolveBatch turns the run target into a manifest and base directory. A
// directory argument becomes an implicit manifest over its .sql files,
// taking execution defaults from the project config; a YAML argument is
// schema-validated and loaded.
func resolveBatch(target string, cfg *config.ProjectConfig) (*models.BatchManifest, string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, "", fmt.Errorf("cannot read %s: %w", target, err)
	}

	if info.IsDir() {
		paths, err := discovery.Discover(target)
		if err != nil {
			return nil, "", err
		}
		if len(paths) == 0 {
			return nil, "", fmt.Errorf("no .sql files found under %s", target)
		}

		patterns := make([]string, 0, len(paths))
		for _, p := range paths {
			rel, err := filepath.Rel(target, p)
			if err != nil {
				return nil, "", err
			}
			patterns = append(patterns, rel)
		}

		manifest := &models.BatchManifest{
			Name:       filepath.Base(target),
			Quests:     patterns,
			TimeoutSec: cfg.Defaults.TimeoutSec,
			Workers:    cfg.Defaults.Workers,
			Parallel:   cfg.Defaults.Parallel != nil && *cfg.Defaults.Parallel,
		}
		if manifest.TimeoutSec <= 0 {
			manifest.TimeoutSec = models.DefaultTimeoutSec
		}
		if manifest.Workers <= 0 {
			manifest.Workers = models.DefaultWorkers
		}
		return manifest, target, nil
	}

	problems, err := validation.ValidateManifestFile(target)
	if err != nil {
		return nil, "", err
	}
	if len(problems) > 0 {
		return nil, "", fmt.Errorf("manifest %s is invalid:\n  %s", target, strings.Join(problems, "\n  "))
	}

	manifest, err := models.LoadManifest(target)
	if err != nil {
		return nil, "", err
	}
	return manifest, filepath.Dir(target), nil
}

// buildCache constructs the result cache from flags and project config.
// Flags win over config; --no-cache wins over everything.
func buildCache(cfg *config.ProjectConfig) (cache.ResultCache, error) {
	if disableCache {
		return nil, nil
	}
	enabled := enableCache || (cfg.Cache.Enabled != nil && *cfg.Cache.Enabled)
	if !enabled {
		return nil, nil
	}

	dir := runCacheDir
	if dir == "" {
		dir = cfg.Cache.Dir
	}
	backend := cacheBackend
	if backend == "" {
		backend = cfg.Cache.Backend
	}

	switch backend {
	case "", "file":
		return cache.NewFileCache(dir), nil
	case "sqlite":
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		return cache.NewSQLiteCache(filepath.Join(dir, "results.db"), 0)
	default:
		return nil, fmt.Errorf("'%s' is not a valid cache backend (expected file or sqlite)", backend)
	}
}

// progressPrinter streams per-quest lines as the batch runs. Quiet mode
// only reports problems; verbose mode reports everything.
func progressPrinter() orchestration.ProgressListener {
	start := time.Now()
	return func(e orchestration.ProgressEvent) {
		switch e.EventType {
		case orchestration.EventBatchStart:
			fmt.Printf("Evaluating %d quest(s)...\n", e.TotalQuests)
		case orchestration.EventQuestComplete, orchestration.EventQuestCached:
			if !verbose && e.Status == models.StatusSuccess {
				return
			}
			cached := e.EventType == orchestration.EventQuestCached
			fmt.Printf("[%d/%d] %s\n", e.QuestNum, e.TotalQuests,
				reporting.FormatProgressLine(e.QuestPath, e.Status, e.DurationMs, cached))
		case orchestration.EventBatchAborted:
			fmt.Printf("Batch aborted after %s\n", time.Since(start).Round(time.Millisecond))
		}
	}
}
