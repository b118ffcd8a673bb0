// Package cache stores execution results keyed by content fingerprint so
// unchanged quests are not re-executed.
package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/pgquest/questeval/internal/models"
)

// ResultCache maps a fingerprint to a prior execution result. A miss is the
// normal "need to execute" path, never an error.
type ResultCache interface {
	// Get retrieves a cached result if it exists.
	Get(fingerprint string) (*models.ExecutionResult, bool)

	// Put stores a result under the given fingerprint.
	Put(fingerprint string, result *models.ExecutionResult) error

	// Clear removes all cached results.
	Clear() error
}

// FileCache persists results as gzip-compressed JSON files in a directory.
// An empty directory disables caching.
type FileCache struct {
	dir string
	mu  sync.Mutex
}

// NewFileCache creates a file cache rooted at dir.
func NewFileCache(dir string) *FileCache {
	return &FileCache{dir: dir}
}

const fileCacheExt = ".json.gz"

// Get retrieves a cached execution result if it exists. Unreadable or
// corrupt entries are treated as misses.
func (c *FileCache) Get(fingerprint string) (*models.ExecutionResult, bool) {
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.entryPath(fingerprint))
	if err != nil {
		// Cache miss
		return nil, false
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, false
	}
	if err := zr.Close(); err != nil {
		return nil, false
	}

	var result models.ExecutionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// Invalid cache entry, treat as miss
		return nil, false
	}

	return &result, true
}

// Put stores an execution result in the cache.
func (c *FileCache) Put(fingerprint string, result *models.ExecutionResult) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return fmt.Errorf("compressing result: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compressing result: %w", err)
	}

	if err := os.WriteFile(c.entryPath(fingerprint), buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return nil
}

// Clear removes all cached results. It refuses to delete directories that
// contain anything other than cache entries.
func (c *FileCache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
		}
		if !isCacheEntryName(entry.Name()) {
			return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

func (c *FileCache) entryPath(fingerprint string) string {
	return filepath.Join(c.dir, fingerprint+fileCacheExt)
}

func isCacheEntryName(name string) bool {
	return len(name) > len(fileCacheExt) && name[len(name)-len(fileCacheExt):] == fileCacheExt
}

// Ensure FileCache satisfies ResultCache.
var _ ResultCache = (*FileCache)(nil)
