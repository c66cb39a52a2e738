package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS resolution_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_resolution_cache_expires_at ON resolution_cache(expires_at);
`

// SQLiteStore implements Store on a local SQLite database, so cached
// resolutions survive process restarts.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the cache database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("%w: %v", ErrBackendUnavailable, err), closeErr)
	}

	if _, err := db.Exec(cacheSchema); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to create cache table: %w", err), closeErr)
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the live value for key, lazily evicting an expired entry.
func (s *SQLiteStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		data      string
		expiresAt time.Time
	)
	err := s.db.QueryRow(
		`SELECT data, expires_at FROM resolution_cache WHERE cache_key = ?`, key,
	).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if time.Now().UTC().After(expiresAt) {
		if _, err := s.db.Exec(`DELETE FROM resolution_cache WHERE cache_key = ?`, key); err != nil {
			slog.Warn("Failed to evict expired cache entry", "key", key, "error", err)
		}
		return "", false, nil
	}

	return data, true, nil
}

// Set stores value under key with the given TTL.
func (s *SQLiteStore) Set(key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := time.Now().UTC().Add(ttl)
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO resolution_cache (cache_key, data, cached_at, expires_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP, ?)`,
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Delete removes one entry.
func (s *SQLiteStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM resolution_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Clear drops every cache entry.
func (s *SQLiteStore) Clear() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`DELETE FROM resolution_cache`)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	slog.Debug("Cache cleared", "rows_deleted", rows)
	return rows, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
