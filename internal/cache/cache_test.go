package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgquest/questeval/internal/fingerprint"
	"github.com/pgquest/questeval/internal/models"
)

func sampleResult(fp string) *models.ExecutionResult {
	return &models.ExecutionResult{
		Fingerprint:   fp,
		Status:        models.StatusSuccess,
		DurationMs:    42,
		StdoutExcerpt: " ?column? \n-----------\n         1\n(1 row)\n",
	}
}

func TestFileCache_PutGetRoundTrip(t *testing.T) {
	c := NewFileCache(t.TempDir())
	fp := fingerprint.Sum([]byte("SELECT 1;"))
	want := sampleResult(fp)

	require.NoError(t, c.Put(fp, want))

	got, found := c.Get(fp)
	require.True(t, found)
	assert.Equal(t, want, got) // no loss of fields
}

func TestFileCache_MissOnUnknownFingerprint(t *testing.T) {
	c := NewFileCache(t.TempDir())

	_, found := c.Get(fingerprint.Sum([]byte("never stored")))
	assert.False(t, found)
}

func TestFileCache_DifferentContentIsAMiss(t *testing.T) {
	c := NewFileCache(t.TempDir())
	fp1 := fingerprint.Sum([]byte("SELECT 1;"))
	require.NoError(t, c.Put(fp1, sampleResult(fp1)))

	fp2 := fingerprint.Sum([]byte("SELECT 1; -- edited"))
	_, found := c.Get(fp2)
	assert.False(t, found)
}

func TestFileCache_EmptyDirDisablesCaching(t *testing.T) {
	c := NewFileCache("")
	fp := fingerprint.Sum([]byte("SELECT 1;"))

	require.NoError(t, c.Put(fp, sampleResult(fp)))
	_, found := c.Get(fp)
	assert.False(t, found)
}

func TestFileCache_CorruptEntryIsAMiss(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir)
	fp := fingerprint.Sum([]byte("SELECT 1;"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, fp+".json.gz"), []byte("not gzip"), 0644))

	_, found := c.Get(fp)
	assert.False(t, found)
}

func TestFileCache_Clear(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir)
	fp := fingerprint.Sum([]byte("SELECT 1;"))
	require.NoError(t, c.Put(fp, sampleResult(fp)))

	require.NoError(t, c.Clear())

	_, found := c.Get(fp)
	assert.False(t, found)
}

func TestFileCache_ClearRefusesForeignFiles(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep me"), 0644))

	err := c.Clear()
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, statErr)
}

func TestFileCache_ClearMissingDirIsNoop(t *testing.T) {
	c := NewFileCache(filepath.Join(t.TempDir(), "never-created"))
	assert.NoError(t, c.Clear())
}
