package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgquest/questeval/internal/fingerprint"
	"github.com/pgquest/questeval/internal/models"
)

func newTestSQLiteCache(t *testing.T, ttl time.Duration) *SQLiteCache {
	t.Helper()
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSQLiteCache_PutGetRoundTrip(t *testing.T) {
	c := newTestSQLiteCache(t, 0)
	fp := fingerprint.Sum([]byte("SELECT now();"))
	want := &models.ExecutionResult{
		Fingerprint:  fp,
		Status:       models.StatusFailure,
		DurationMs:   7,
		ErrorMessage: `relation "nonexistent_table" does not exist`,
	}

	require.NoError(t, c.Put(fp, want))

	got, found := c.Get(fp)
	require.True(t, found)
	assert.Equal(t, want, got)
}

func TestSQLiteCache_MissOnUnknownFingerprint(t *testing.T) {
	c := newTestSQLiteCache(t, 0)

	_, found := c.Get(fingerprint.Sum([]byte("unknown")))
	assert.False(t, found)
}

func TestSQLiteCache_PutReplacesEntry(t *testing.T) {
	c := newTestSQLiteCache(t, 0)
	fp := fingerprint.Sum([]byte("SELECT 1;"))

	first := &models.ExecutionResult{Fingerprint: fp, Status: models.StatusFailure, DurationMs: 5}
	require.NoError(t, c.Put(fp, first))

	second := &models.ExecutionResult{Fingerprint: fp, Status: models.StatusSuccess, DurationMs: 9}
	require.NoError(t, c.Put(fp, second))

	got, found := c.Get(fp)
	require.True(t, found)
	assert.Equal(t, second, got)
}

func TestSQLiteCache_TTLExpiry(t *testing.T) {
	c := newTestSQLiteCache(t, time.Nanosecond)
	fp := fingerprint.Sum([]byte("SELECT 1;"))
	require.NoError(t, c.Put(fp, &models.ExecutionResult{Fingerprint: fp, Status: models.StatusSuccess}))

	time.Sleep(10 * time.Millisecond)

	_, found := c.Get(fp)
	assert.False(t, found)
}

func TestSQLiteCache_ClearAndStats(t *testing.T) {
	c := newTestSQLiteCache(t, 0)
	fp := fingerprint.Sum([]byte("SELECT 1;"))
	require.NoError(t, c.Put(fp, &models.ExecutionResult{Fingerprint: fp, Status: models.StatusSuccess}))

	_, found := c.Get(fp)
	require.True(t, found)

	entries, hits, misses, err := c.Stats()
	require.NoError(t, err)
	assert.EqualValues(t, 1, entries)
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 0, misses)

	require.NoError(t, c.Clear())

	entries, _, _, err = c.Stats()
	require.NoError(t, err)
	assert.EqualValues(t, 0, entries)
}
