package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agdev/storagegate/database/internal"
)

var expectedSchemas = internal.TableSchemas{
	"storage_endpoints": {
		"id":             {DataType: "bigint"},
		"name":           {DataType: "text"},
		"url":            {DataType: "text"},
		"region":         {DataType: "text"},
		"bucket":         {DataType: "text"},
		"credential_ref": {DataType: "text"},
		"type":           {DataType: "text"},
		"created_at":     {DataType: "timestamp with time zone"},
	},
	"object_groups": {
		"id":            {DataType: "uuid"},
		"created_at":    {DataType: "timestamp with time zone"},
		"domain":        {DataType: "text"},
		"user_id":       {DataType: "text"},
		"project_id":    {DataType: "text"},
		"category":      {DataType: "text"},
		"common_prefix": {DataType: "text"},
		"finalized_at":  {DataType: "timestamp with time zone", IsNullable: true},
		"storage_id":    {DataType: "bigint"},
	},
	"pending_objects": {
		"id":                  {DataType: "uuid"},
		"created_at":          {DataType: "timestamp with time zone"},
		"relative_key":        {DataType: "text"},
		"purpose":             {DataType: "text"},
		"group_id":            {DataType: "uuid"},
		"storage_id":          {DataType: "bigint"},
		"upload_validated_at": {DataType: "timestamp with time zone", IsNullable: true},
		"mime_type":           {DataType: "text", IsNullable: true},
	},
}

// ValidateSchema checks that every catalog table has the expected columns.
func ValidateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range []string{"storage_endpoints", "object_groups", "pending_objects"} {
		if err := validateTableSchema(ctx, pool, table, expectedSchemas[table]); err != nil {
			return fmt.Errorf("validate schema %s: %w", table, err)
		}
	}
	return nil
}

func validateTableSchema(ctx context.Context, pool *pgxpool.Pool, tableName string, expected map[string]internal.ColumnInfo) error {
	exists, err := tableExists(ctx, pool, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: %w", err)
	}

	if !exists {
		return fmt.Errorf("validate table schema: table %s does not exist", tableName)
	}

	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := pool.Query(ctx, query, tableName)
	if err != nil {
		return fmt.Errorf("validate table schema: query columns: %w", err)
	}
	defer rows.Close()

	actual := make(map[string]internal.ColumnInfo)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return fmt.Errorf("validate table schema: scan column: %w", err)
		}
		actual[name] = internal.ColumnInfo{
			DataType:   strings.ToLower(dataType),
			IsNullable: nullable == "YES",
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("validate table schema: rows error: %w", err)
	}

	return internal.CompareColumns(tableName, expected, actual)
}

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = current_schema()
			AND table_name = $1
		)
	`
	err := pool.QueryRow(ctx, query, tableName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return exists, nil
}
