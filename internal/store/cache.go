package store

import (
	"database/sql"
	"errors"
	"time"
)

// GetCache returns the stored bytes for key, or nil on a miss. Expiry is
// lazy: an entry past its deadline is deleted on read and reported as a miss.
func (db *DB) GetCache(key string) ([]byte, error) {
	var row struct {
		ExpiresAt sql.NullTime `db:"expires_at"`
		Data      []byte       `db:"data"`
	}

	err := db.Get(&row, "SELECT data, expires_at FROM cache WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if row.ExpiresAt.Valid && time.Now().After(row.ExpiresAt.Time) {
		_, _ = db.Exec("DELETE FROM cache WHERE key = ?", key)
		return nil, nil
	}

	return row.Data, nil
}

// SetCache stores data under key, replacing any previous entry. A ttl of
// zero or less stores the entry without an expiry.
func (db *DB) SetCache(key string, data []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	_, err := db.Exec(`
		INSERT INTO cache (key, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at
	`, key, data, expiresAt)
	return err
}

// ClearCache drops every entry, expired or not.
func (db *DB) ClearCache() error {
	_, err := db.Exec("DELETE FROM cache")
	return err
}
