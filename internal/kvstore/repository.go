// Package kvstore provides durable key-value storage for dashboard state.
// Values are opaque blobs (JSON documents in practice) keyed by name.
package kvstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("kvstore: key not found")

// Repository stores values in the kv_store table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new key-value repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the value stored under key, or ErrNotFound.
func (r *Repository) Get(key string) ([]byte, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return []byte(value), nil
}

// Set stores value under key, replacing any previous value.
func (r *Repository) Set(key string, value []byte) error {
	_, err := r.db.Exec(
		"INSERT OR REPLACE INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)",
		key, string(value), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *Repository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM kv_store WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Entry is a stored key with its last write time.
type Entry struct {
	Key       string    `json:"key"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// List returns all keys ordered by name.
func (r *Repository) List() ([]Entry, error) {
	rows, err := r.db.Query("SELECT key, length(value), updated_at FROM kv_store ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var updatedAt int64
		if err := rows.Scan(&e.Key, &e.Size, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		e.UpdatedAt = time.Unix(updatedAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
