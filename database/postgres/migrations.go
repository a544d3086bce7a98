package postgres

import (
	"context"
	"embed"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/agdev/storagegate/database/internal"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every pending catalog migration.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	return internal.MigrateUp(ctx, goose.DialectPostgres, db, migrationsFS)
}

// Rollback reverts the most recent catalog migration.
func Rollback(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	return internal.MigrateDown(ctx, goose.DialectPostgres, db, migrationsFS)
}

// Status reports which catalog migrations are applied.
func Status(ctx context.Context, pool *pgxpool.Pool) ([]internal.MigrationStatus, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer func() { _ = db.Close() }()

	return internal.Status(ctx, goose.DialectPostgres, db, migrationsFS)
}
