package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agdev/storagegate/database/sqlite"
)

// newTestDB opens a private in-memory database.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err, "open sqlite")
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// setupTestRepo returns a migrated catalog backed by a fresh in-memory database.
func setupTestRepo(t *testing.T) *sqlite.Repo {
	t.Helper()
	db := newTestDB(t)

	require.NoError(t, sqlite.Migrate(context.Background(), db), "migrate")
	return sqlite.NewRepo(db)
}
