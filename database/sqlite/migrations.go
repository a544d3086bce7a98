package sqlite

import (
	"context"
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"

	"github.com/agdev/storagegate/database/internal"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every pending catalog migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	return internal.MigrateUp(ctx, goose.DialectSQLite3, db, migrationsFS)
}

// Rollback reverts the most recent catalog migration.
func Rollback(ctx context.Context, db *sql.DB) error {
	return internal.MigrateDown(ctx, goose.DialectSQLite3, db, migrationsFS)
}

// Status reports which catalog migrations are applied.
func Status(ctx context.Context, db *sql.DB) ([]internal.MigrationStatus, error) {
	return internal.Status(ctx, goose.DialectSQLite3, db, migrationsFS)
}
