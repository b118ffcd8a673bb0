package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgquest/questeval/internal/cache"
	"github.com/pgquest/questeval/internal/config"
)

func TestResolveBatch_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01-select.sql"), []byte("SELECT 1;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02-joins.sql"), []byte("SELECT 2;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("not a quest"), 0o644))

	manifest, baseDir, err := resolveBatch(dir, config.New())
	require.NoError(t, err)

	assert.Equal(t, filepath.Base(dir), manifest.Name)
	assert.Equal(t, []string{"01-select.sql", "02-joins.sql"}, manifest.Quests)
	assert.Equal(t, dir, baseDir)
}

func TestResolveBatch_EmptyDirectory(t *testing.T) {
	_, _, err := resolveBatch(t.TempDir(), config.New())
	assert.Error(t, err)
}

func TestResolveBatch_Manifest(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "batch.yaml")
	content := `name: week-3
quests:
  - "*.sql"
timeout_sec: 10
parallel: true
workers: 2
`
	require.NoError(t, os.WriteFile(manifestPath, []byte(content), 0o644))

	manifest, baseDir, err := resolveBatch(manifestPath, config.New())
	require.NoError(t, err)

	assert.Equal(t, "week-3", manifest.Name)
	assert.Equal(t, []string{"*.sql"}, manifest.Quests)
	assert.Equal(t, 10, manifest.TimeoutSec)
	assert.True(t, manifest.Parallel)
	assert.Equal(t, dir, baseDir)
}

func TestResolveBatch_ManifestFailsSchemaValidation(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "batch.yaml")
	content := `name: broken
quests: []
unknown_field: true
`
	require.NoError(t, os.WriteFile(manifestPath, []byte(content), 0o644))

	_, _, err := resolveBatch(manifestPath, config.New())
	assert.Error(t, err)
}

func TestResolveBatch_MissingTarget(t *testing.T) {
	_, _, err := resolveBatch(filepath.Join(t.TempDir(), "nope"), config.New())
	assert.Error(t, err)
}

// resetCacheFlags restores the package-level cache flag variables after a
// test mutates them.
func resetCacheFlags(t *testing.T) {
	t.Helper()
	prevEnable, prevDisable := enableCache, disableCache
	prevDir, prevBackend := runCacheDir, cacheBackend
	t.Cleanup(func() {
		enableCache, disableCache = prevEnable, prevDisable
		runCacheDir, cacheBackend = prevDir, prevBackend
	})
}

func TestBuildCache_DisabledByDefault(t *testing.T) {
	resetCacheFlags(t)
	enableCache, disableCache = false, false

	c, err := buildCache(config.New())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestBuildCache_FlagEnablesFileBackend(t *testing.T) {
	resetCacheFlags(t)
	enableCache, disableCache = true, false
	runCacheDir = t.TempDir()
	cacheBackend = ""

	c, err := buildCache(config.New())
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.IsType(t, &cache.FileCache{}, c)
}

func TestBuildCache_SQLiteBackend(t *testing.T) {
	resetCacheFlags(t)
	enableCache, disableCache = true, false
	runCacheDir = filepath.Join(t.TempDir(), "qcache")
	cacheBackend = "sqlite"

	c, err := buildCache(config.New())
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.IsType(t, &cache.SQLiteCache{}, c)
}

func TestBuildCache_NoCacheWins(t *testing.T) {
	resetCacheFlags(t)
	enableCache, disableCache = true, true

	c, err := buildCache(config.New())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestBuildCache_UnknownBackend(t *testing.T) {
	resetCacheFlags(t)
	enableCache, disableCache = true, false
	cacheBackend = "redis"

	_, err := buildCache(config.New())
	assert.Error(t, err)
}

func TestBatchFailureErrorUnwrapsWithAs(t *testing.T) {
	err := fmt.Errorf("run failed: %w", &BatchFailureError{Message: "2 of 5 quests did not pass"})

	var batchErr *BatchFailureError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, "2 of 5 quests did not pass", batchErr.Message)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "list")
	assert.Contains(t, names, "cache")
}
