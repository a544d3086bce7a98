package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"time"

	"github.com/pressly/goose/v3"
)

// MigrationStatus describes one embedded migration and whether it is applied.
type MigrationStatus struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

func newProvider(dialect goose.Dialect, db *sql.DB, fsys fs.FS) (*goose.Provider, error) {
	sub, err := fs.Sub(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations fs: %w", err)
	}

	p, err := goose.NewProvider(dialect, db, sub)
	if err != nil {
		return nil, fmt.Errorf("new migration provider: %w", err)
	}
	return p, nil
}

// MigrateUp applies every pending migration found under migrations/ in fsys.
func MigrateUp(ctx context.Context, dialect goose.Dialect, db *sql.DB, fsys fs.FS) error {
	p, err := newProvider(dialect, db, fsys)
	if err != nil {
		return err
	}

	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	for _, r := range results {
		slog.Info("migration applied", "version", r.Source.Version, "name", path.Base(r.Source.Path), "duration", r.Duration)
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration. It is a no-op
// when nothing is applied.
func MigrateDown(ctx context.Context, dialect goose.Dialect, db *sql.DB, fsys fs.FS) error {
	p, err := newProvider(dialect, db, fsys)
	if err != nil {
		return err
	}

	r, err := p.Down(ctx)
	if errors.Is(err, goose.ErrNoNextVersion) {
		slog.Info("no migration to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}

	slog.Info("migration rolled back", "version", r.Source.Version, "name", path.Base(r.Source.Path))
	return nil
}

// Status lists every embedded migration in version order.
func Status(ctx context.Context, dialect goose.Dialect, db *sql.DB, fsys fs.FS) ([]MigrationStatus, error) {
	p, err := newProvider(dialect, db, fsys)
	if err != nil {
		return nil, err
	}

	st, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status: %w", err)
	}

	out := make([]MigrationStatus, 0, len(st))
	for _, s := range st {
		out = append(out, MigrationStatus{
			Version:   s.Source.Version,
			Name:      path.Base(s.Source.Path),
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

// ColumnInfo is the expected shape of one column.
type ColumnInfo struct {
	DataType   string
	IsNullable bool
}

// TableSchemas lists the columns every backend must have after migration,
// keyed by table. Data types are backend specific.
type TableSchemas map[string]map[string]ColumnInfo

// CompareColumns reports missing and mismatched columns of table.
func CompareColumns(table string, expected, actual map[string]ColumnInfo) error {
	var missing, mismatched []string

	for name, want := range expected {
		got, ok := actual[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if got.DataType != want.DataType {
			mismatched = append(mismatched, fmt.Sprintf("%s: expected %s, got %s", name, want.DataType, got.DataType))
		}
		if got.IsNullable != want.IsNullable {
			mismatched = append(mismatched, fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", name, want.IsNullable, got.IsNullable))
		}
	}

	if len(missing) == 0 && len(mismatched) == 0 {
		return nil
	}

	return &SchemaError{Table: table, Missing: missing, Mismatched: mismatched}
}

// SchemaError is returned when a table does not match its expected columns.
type SchemaError struct {
	Table      string
	Missing    []string
	Mismatched []string
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("table %s schema validation failed", e.Table)
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf("; missing columns: %v", e.Missing)
	}
	if len(e.Mismatched) > 0 {
		msg += fmt.Sprintf("; mismatched columns: %v", e.Mismatched)
	}
	return msg
}
