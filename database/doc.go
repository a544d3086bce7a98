// Package database connects the storage gateway to its catalog backend.
//
// The catalog holds storage endpoints, dynamic object groups and their
// pending objects. Schema changes are goose migrations embedded in each
// backend package.
//
// # Supported Backends
//
//   - PostgreSQL: Production backend using a pgx connection pool
//   - SQLite: Lightweight backend for development and single-node deployments
//
// # Usage
//
//	cfg := database.Config{
//	    Type: "sqlite",
//	    DSN:  "storagegate.db",
//	}
//
//	catalog, cleanup, err := database.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
//
// The Connect function automatically:
//   - Opens the database connection
//   - Applies pending migrations
//   - Validates the schema
//   - Returns a ready-to-use storagegate.Catalog
//
// MigrateUp, MigrateDown and Status run migrations without serving.
//
// # Subpackages
//
//   - database/postgres: PostgreSQL implementation using pgx
//   - database/sqlite: SQLite implementation using modernc.org/sqlite
package database
