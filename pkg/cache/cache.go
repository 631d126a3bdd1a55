// Package cache provides a SQLite-backed TTL cache for extraction results.
// Entries are keyed by a composite fingerprint of document content hash,
// requirement id, and extractor version; expired rows are treated as misses
// so repeated runs stay idempotent within the TTL window.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS extraction_cache (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_extraction_cache_expires ON extraction_cache(expires_at);
`

// Cache is a durable key/value store with per-entry expiry.
// Safe for concurrent use.
type Cache struct {
	mu  sync.Mutex
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the cache database at path, creating parent
// directories as needed and initializing the schema.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}

	return &Cache{db: db, now: time.Now}, nil
}

// Get returns the payload for key. The second return reports whether a
// live entry was found; expired entries are misses.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	var payload []byte
	var expiresAt int64

	row := c.db.QueryRow(
		"SELECT payload, expires_at FROM extraction_cache WHERE key = ?",
		key,
	)
	if err := row.Scan(&payload, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}

	if c.now().Unix() >= expiresAt {
		return nil, false, nil
	}

	return payload, true, nil
}

// Put stores payload under key with the given time-to-live, replacing any
// prior entry.
func (c *Cache) Put(key string, payload []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl).Unix()
	_, err := c.db.Exec(
		"INSERT INTO extraction_cache(key, payload, expires_at) VALUES(?, ?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at",
		key, payload, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Purge deletes all expired entries and returns the number removed.
func (c *Cache) Purge() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.Exec(
		"DELETE FROM extraction_cache WHERE expires_at <= ?",
		c.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return result.RowsAffected()
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
