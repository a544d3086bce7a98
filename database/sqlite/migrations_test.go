package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agdev/storagegate/database/sqlite"
)

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	t.Run("fresh database fails validation", func(t *testing.T) {
		err := sqlite.ValidateSchema(ctx, db)
		assert.ErrorContains(t, err, "does not exist")
	})

	t.Run("up is idempotent", func(t *testing.T) {
		require.NoError(t, sqlite.Migrate(ctx, db))
		require.NoError(t, sqlite.Migrate(ctx, db))
		assert.NoError(t, sqlite.ValidateSchema(ctx, db))
	})

	t.Run("status", func(t *testing.T) {
		st, err := sqlite.Status(ctx, db)
		require.NoError(t, err)
		require.NotEmpty(t, st)
		assert.Equal(t, int64(1), st[0].Version)
		assert.Equal(t, "00001_init.sql", st[0].Name)
		assert.True(t, st[0].Applied)
	})

	t.Run("rollback", func(t *testing.T) {
		require.NoError(t, sqlite.Rollback(ctx, db))

		st, err := sqlite.Status(ctx, db)
		require.NoError(t, err)
		assert.False(t, st[0].Applied)

		assert.Error(t, sqlite.ValidateSchema(ctx, db))
		assert.NoError(t, sqlite.Rollback(ctx, db), "nothing left to roll back")
	})
}

func TestOpen_ForeignKeysEnforced(t *testing.T) {
	db := newTestDB(t)

	var enabled int
	require.NoError(t, db.QueryRowContext(context.Background(), "PRAGMA foreign_keys").Scan(&enabled))
	assert.Equal(t, 1, enabled)
}
