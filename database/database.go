package database

import (
	"context"
	"fmt"

	"github.com/agdev/storagegate"
	"github.com/agdev/storagegate/database/internal"
	"github.com/agdev/storagegate/database/postgres"
	"github.com/agdev/storagegate/database/sqlite"
)

// Config holds the configuration for connecting to a catalog backend.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" validate:"required"`
}

// MigrationStatus describes one catalog migration.
type MigrationStatus = internal.MigrationStatus

// Connect establishes a connection to the configured database backend,
// runs migrations, validates the schema, and returns a Catalog.
// The returned cleanup function should be called to close the connection.
func Connect(ctx context.Context, cfg Config) (storagegate.Catalog, func(), error) {
	switch cfg.Type {
	case "sqlite":
		return connectSQLite(ctx, cfg.DSN)
	case "postgres":
		return connectPostgres(ctx, cfg.DSN)
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func connectSQLite(ctx context.Context, dsn string) (storagegate.Catalog, func(), error) {
	db, err := sqlite.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}

	if err = sqlite.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	if err = sqlite.ValidateSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("validate sqlite schema: %w", err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return sqlite.NewRepo(db), cleanup, nil
}

func connectPostgres(ctx context.Context, dsn string) (storagegate.Catalog, func(), error) {
	pool, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}

	if err = postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	if err = postgres.ValidateSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("validate postgres schema: %w", err)
	}

	return postgres.NewRepo(pool), pool.Close, nil
}

// MigrateUp applies pending migrations without opening a catalog.
func MigrateUp(ctx context.Context, cfg Config) error {
	switch cfg.Type {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		return sqlite.Migrate(ctx, db)
	case "postgres":
		pool, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		return postgres.Migrate(ctx, pool)
	default:
		return fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// MigrateDown rolls back the most recent migration.
func MigrateDown(ctx context.Context, cfg Config) error {
	switch cfg.Type {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		return sqlite.Rollback(ctx, db)
	case "postgres":
		pool, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		return postgres.Rollback(ctx, pool)
	default:
		return fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// Status lists the catalog migrations and whether each is applied.
func Status(ctx context.Context, cfg Config) ([]MigrationStatus, error) {
	switch cfg.Type {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		defer func() { _ = db.Close() }()
		return sqlite.Status(ctx, db)
	case "postgres":
		pool, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		return postgres.Status(ctx, pool)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
