package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/agdev/storagegate/database/internal"
)

var expectedSchemas = internal.TableSchemas{
	"storage_endpoints": {
		"id":             {DataType: "integer", IsNullable: true},
		"name":           {DataType: "text"},
		"url":            {DataType: "text"},
		"region":         {DataType: "text"},
		"bucket":         {DataType: "text"},
		"credential_ref": {DataType: "text"},
		"type":           {DataType: "text"},
		"created_at":     {DataType: "text"},
	},
	"object_groups": {
		"id":            {DataType: "text"},
		"created_at":    {DataType: "text"},
		"domain":        {DataType: "text"},
		"user_id":       {DataType: "text"},
		"project_id":    {DataType: "text"},
		"category":      {DataType: "text"},
		"common_prefix": {DataType: "text"},
		"finalized_at":  {DataType: "text", IsNullable: true},
		"storage_id":    {DataType: "integer"},
	},
	"pending_objects": {
		"id":                  {DataType: "text"},
		"created_at":          {DataType: "text"},
		"relative_key":        {DataType: "text"},
		"purpose":             {DataType: "text"},
		"group_id":            {DataType: "text"},
		"storage_id":          {DataType: "integer"},
		"upload_validated_at": {DataType: "text", IsNullable: true},
		"mime_type":           {DataType: "text", IsNullable: true},
	},
}

// quoteIdentifier safely quotes a SQLite identifier
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ValidateSchema checks that every catalog table has the expected columns.
func ValidateSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"storage_endpoints", "object_groups", "pending_objects"} {
		if err := validateTableSchema(ctx, db, table, expectedSchemas[table]); err != nil {
			return fmt.Errorf("validate schema %s: %w", table, err)
		}
	}
	return nil
}

func validateTableSchema(ctx context.Context, db *sql.DB, tableName string, expected map[string]internal.ColumnInfo) error {
	exists, err := tableExists(ctx, db, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: %w", err)
	}

	if !exists {
		return fmt.Errorf("validate table schema: table %s does not exist", tableName)
	}

	// SQLite uses PRAGMA table_info to get column information
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(tableName)))
	if err != nil {
		return fmt.Errorf("validate table schema: query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	actual := make(map[string]internal.ColumnInfo)
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull int
		var dfltValue sql.NullString
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("validate table schema: scan column: %w", err)
		}
		actual[name] = internal.ColumnInfo{
			DataType:   strings.ToLower(dataType),
			IsNullable: notNull == 0,
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("validate table schema: rows error: %w", err)
	}

	return internal.CompareColumns(tableName, expected, actual)
}

func tableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, tableName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return count > 0, nil
}
