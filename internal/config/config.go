// Package config provides the ProjectConfig struct and loader for
// .questeval.yaml project-level configuration files, plus database
// connection settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values for project configuration.
const (
	DefaultQuestsDir = "quests/"

	DefaultTimeoutSec = 30
	DefaultWorkers    = 4

	DefaultCacheDir     = ".questeval-cache"
	DefaultCacheBackend = "file"

	// EnvDatabaseURL names the connection string for both the sandbox
	// database and the evaluation store.
	EnvDatabaseURL = "QUESTEVAL_DATABASE_URL"
)

// PathsConfig holds directory paths for quests.
type PathsConfig struct {
	Quests string `yaml:"quests,omitempty"`
}

// DefaultsConfig holds default execution parameters.
type DefaultsConfig struct {
	TimeoutSec int    `yaml:"timeout_sec,omitempty"`
	Parallel   *bool  `yaml:"parallel,omitempty"`
	Workers    int    `yaml:"workers,omitempty"`
	Verbose    *bool  `yaml:"verbose,omitempty"`
	JudgeKind  string `yaml:"judge,omitempty"`
}

// CacheConfig holds result-cache settings.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Backend string `yaml:"backend,omitempty"` // "file" or "sqlite"
	Dir     string `yaml:"dir,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .questeval.yaml.
type ProjectConfig struct {
	Paths    PathsConfig    `yaml:"paths,omitempty"`
	Defaults DefaultsConfig `yaml:"defaults,omitempty"`
	Cache    CacheConfig    `yaml:"cache,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			Quests: DefaultQuestsDir,
		},
		Defaults: DefaultsConfig{
			TimeoutSec: DefaultTimeoutSec,
			Parallel:   boolPtr(false),
			Workers:    DefaultWorkers,
			Verbose:    boolPtr(false),
		},
		Cache: CacheConfig{
			Enabled: boolPtr(false),
			Backend: DefaultCacheBackend,
			Dir:     DefaultCacheDir,
		},
	}
}

// Load finds .questeval.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults. If no config
// file is found, returns defaults with a nil error. Real I/O errors (e.g.
// permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found, use defaults
		}
		return nil, fmt.Errorf("loading .questeval.yaml: %w", err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing .questeval.yaml: %w", err)
	}

	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// DatabaseURL resolves the database connection string. A .env file in the
// working directory is loaded first if present, then the environment is
// consulted: QUESTEVAL_DATABASE_URL wins, with a PG* fallback matching the
// conventions of the psql tooling this harness replaces.
func DatabaseURL() (string, error) {
	// Missing .env is the common case, not an error.
	_ = godotenv.Load()

	if dsn := os.Getenv(EnvDatabaseURL); dsn != "" {
		return dsn, nil
	}

	user := os.Getenv("PGUSER")
	dbname := os.Getenv("PGDATABASE")
	if user == "" || dbname == "" {
		return "", fmt.Errorf("no database configured: set %s or PGUSER/PGDATABASE", EnvDatabaseURL)
	}

	dsn := fmt.Sprintf("user=%s dbname=%s", user, dbname)
	if host := os.Getenv("PGHOST"); host != "" {
		dsn += fmt.Sprintf(" host=%s", host)
	}
	if port := os.Getenv("PGPORT"); port != "" {
		dsn += fmt.Sprintf(" port=%s", port)
	}
	if password := os.Getenv("PGPASSWORD"); password != "" {
		dsn += fmt.Sprintf(" password=%s", password)
	}
	if sslmode := os.Getenv("PGSSLMODE"); sslmode != "" {
		dsn += fmt.Sprintf(" sslmode=%s", sslmode)
	}
	return dsn, nil
}

// findConfigFile walks up from dir looking for .questeval.yaml (max 10
// levels). Returns os.ErrNotExist if no config file is found. Propagates
// real I/O errors instead of silently swallowing them.
func findConfigFile(dir string) ([]byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, ".questeval.yaml")
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	if src.Paths.Quests != "" {
		dst.Paths.Quests = src.Paths.Quests
	}

	if src.Defaults.TimeoutSec != 0 {
		dst.Defaults.TimeoutSec = src.Defaults.TimeoutSec
	}
	if src.Defaults.Parallel != nil {
		dst.Defaults.Parallel = src.Defaults.Parallel
	}
	if src.Defaults.Workers != 0 {
		dst.Defaults.Workers = src.Defaults.Workers
	}
	if src.Defaults.Verbose != nil {
		dst.Defaults.Verbose = src.Defaults.Verbose
	}
	if src.Defaults.JudgeKind != "" {
		dst.Defaults.JudgeKind = src.Defaults.JudgeKind
	}

	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	if src.Cache.Backend != "" {
		dst.Cache.Backend = src.Cache.Backend
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}
}

func boolPtr(b bool) *bool {
	return &b
}
