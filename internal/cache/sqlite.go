package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pgquest/questeval/internal/models"
)

// SQLiteCache is a persistent result cache backed by SQLite. A zero TTL
// means entries never expire.
type SQLiteCache struct {
	db     *sql.DB
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS result_cache (
	fingerprint TEXT NOT NULL PRIMARY KEY,
	result BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_ns INTEGER NOT NULL
);
`

// NewSQLiteCache opens (creating if needed) a cache database at dbPath.
func NewSQLiteCache(dbPath string, ttl time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &SQLiteCache{db: db, ttl: ttl}, nil
}

// Get retrieves a cached result. Expired entries count as misses.
func (c *SQLiteCache) Get(fingerprint string) (*models.ExecutionResult, bool) {
	var payload []byte
	var createdAt time.Time
	var ttlNs int64

	err := c.db.QueryRow(
		`SELECT result, created_at, ttl_ns FROM result_cache WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&payload, &createdAt, &ttlNs)

	if err != nil {
		c.misses.Add(1)
		return nil, false
	}

	if ttlNs > 0 && time.Since(createdAt) > time.Duration(ttlNs) {
		c.misses.Add(1)
		return nil, false
	}

	var result models.ExecutionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return &result, true
}

// Put stores a result in the cache, replacing any prior entry for the
// fingerprint.
func (c *SQLiteCache) Put(fingerprint string, result *models.ExecutionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}

	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO result_cache (fingerprint, result, created_at, ttl_ns)
		 VALUES (?, ?, ?, ?)`,
		fingerprint, payload, time.Now().UTC(), c.ttl.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Clear removes all cache entries.
func (c *SQLiteCache) Clear() error {
	if _, err := c.db.Exec(`DELETE FROM result_cache`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Stats returns hit/miss counters and the current entry count.
func (c *SQLiteCache) Stats() (entries, hits, misses int64, err error) {
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM result_cache`).Scan(&entries); err != nil {
		return 0, 0, 0, fmt.Errorf("cache stats: %w", err)
	}
	return entries, c.hits.Load(), c.misses.Load(), nil
}

// Close releases the database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Ensure SQLiteCache satisfies ResultCache.
var _ ResultCache = (*SQLiteCache)(nil)
