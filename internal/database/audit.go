package database

import (
	"context"
	"fmt"
	"slices"
)

// AuditTableNames lists the tables included in audit exports.
var AuditTableNames = []string{
	"providers",
	"provider_availability",
	"appointments",
}

// GetTableNames returns the tables available for audit export.
func (db *DB) GetTableNames(_ context.Context) ([]string, error) {
	return slices.Clone(AuditTableNames), nil
}

// GetTableData returns all rows of a whitelisted table along with its column names.
func (db *DB) GetTableData(ctx context.Context, table string) (rowsOut []map[string]any, columns []string, err error) {
	if !slices.Contains(AuditTableNames, table) {
		return nil, nil, fmt.Errorf("invalid table name: %s", table)
	}

	// The table name is whitelisted above, so formatting it into the query is safe.
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", table))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err = rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		rowsOut = append(rowsOut, row)
	}
	return rowsOut, columns, rows.Err()
}
