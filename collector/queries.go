package collector

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

const (
	globalStatusQuery    = `SELECT VARIABLE_VALUE FROM performance_schema.global_status WHERE VARIABLE_NAME = ?`
	globalVariablesQuery = `SELECT VARIABLE_VALUE FROM performance_schema.global_variables WHERE VARIABLE_NAME = ?`
)

// queryOptionalString returns the first column of the first row. ok is false
// when the query returned no rows. NULL reads as the empty string.
func queryOptionalString(ctx context.Context, db Querier, query string, args ...any) (value string, ok bool, err error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return "", false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return "", false, rows.Err()
	}
	var v sql.NullString
	if err := rows.Scan(&v); err != nil {
		return "", false, err
	}
	return v.String, true, rows.Err()
}

// queryString is queryOptionalString for values that must be present.
func queryString(ctx context.Context, db Querier, query string, args ...any) (string, error) {
	v, ok, err := queryOptionalString(ctx, db, query, args...)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s %v: %w", query, args, sql.ErrNoRows)
	}
	return v, nil
}

// queryOptionalInt reads a single integer value. A row holding something
// that is not an integer is an error, an absent row is not.
func queryOptionalInt(ctx context.Context, db Querier, query string, args ...any) (int64, bool, error) {
	v, ok, err := queryOptionalString(ctx, db, query, args...)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %q as integer: %w", v, err)
	}
	return n, true, nil
}
