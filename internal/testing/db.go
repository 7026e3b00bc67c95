// Package testing provides testing utilities and helpers for the finboard project.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/aaanmmoool/finboard/internal/database"
	"github.com/aaanmmoool/finboard/internal/kvstore"
)

// NewTestDB creates a migrated SQLite database in a temporary directory.
// The database is closed when the test ends.
func NewTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "finboard.db"),
		Profile: database.ProfileStandard,
		Name:    "test",
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			// Log error but don't fail test - cleanup should be idempotent
			t.Logf("Warning: Failed to close test database: %v", err)
		}
	})
	return db
}

// NewTestKVStore returns a key-value store backed by a fresh test database.
func NewTestKVStore(t *testing.T) *kvstore.Repository {
	t.Helper()
	return kvstore.NewRepository(NewTestDB(t).Conn())
}
