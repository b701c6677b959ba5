package database

import (
	"context"
	"fmt"
)

// ProductsTable is the table every product handler works against.
const ProductsTable = "products"

// ColumnInfo describes one column as reported by information_schema.
type ColumnInfo struct {
	ColumnName    string  `json:"column_name"`
	DataType      string  `json:"data_type"`
	IsNullable    string  `json:"is_nullable"`
	ColumnDefault *string `json:"column_default"`
}

// TableExists reports whether table exists in the current schema.
func TableExists(ctx context.Context, db Querier, table string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1::text
		)`

	var exists bool
	if err := db.QueryRow(ctx, query, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return exists, nil
}

// DescribeTable lists the columns of table in ordinal order.
func DescribeTable(ctx context.Context, db Querier, table string) ([]ColumnInfo, error) {
	query := `
		SELECT column_name::text, data_type::text, is_nullable::text, column_default::text
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1::text
		ORDER BY ordinal_position`

	rows, err := db.Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	columns := []ColumnInfo{}
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.ColumnName, &col.DataType, &col.IsNullable, &col.ColumnDefault); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	return columns, nil
}
