package kvstore

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE kv_store (key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at INTEGER NOT NULL);
`

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

func TestGet_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	_, err := repo.Get("finboard-widgets")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetGetDelete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	require.NoError(t, repo.Set("finboard-api-cache", []byte(`{"a":1}`)))
	got, err := repo.Get("finboard-api-cache")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))

	// Overwrite
	require.NoError(t, repo.Set("finboard-api-cache", []byte(`{}`)))
	got, err = repo.Get("finboard-api-cache")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(got))

	require.NoError(t, repo.Delete("finboard-api-cache"))
	_, err = repo.Get("finboard-api-cache")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is fine
	assert.NoError(t, repo.Delete("finboard-api-cache"))
}

func TestList(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	require.NoError(t, repo.Set("b", []byte("12345")))
	require.NoError(t, repo.Set("a", []byte("1")))

	entries, err := repo.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, 1, entries[0].Size)
	assert.Equal(t, "b", entries[1].Key)
	assert.Equal(t, 5, entries[1].Size)
	assert.False(t, entries[1].UpdatedAt.IsZero())
}
