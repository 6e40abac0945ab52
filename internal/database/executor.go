package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Result is the textual outcome of running a query. Text is either the
// serialized rows or the driver error and is forwarded as-is. Err only
// reports that Text carries an error so callers can log and count it.
type Result struct {
	Text string
	Err  error
}

// Run executes query and serializes the rows as [(v1, v2), (v3, v4)]. Driver
// errors are folded into the text instead of being returned.
func (d *DB) Run(ctx context.Context, query string) Result {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return errorResult(err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return errorResult(err)
	}

	records := make([][]any, 0)
	for rows.Next() {
		values, err := scanRow(rows, len(columns))
		if err != nil {
			return errorResult(err)
		}
		records = append(records, values)
	}
	if err := rows.Err(); err != nil {
		return errorResult(err)
	}
	return Result{Text: FormatRows(records)}
}

// FormatRows renders rows in tuple notation. No rows yield the empty string.
func FormatRows(rows [][]any) string {
	if len(rows) == 0 {
		return ""
	}
	var out strings.Builder
	out.WriteString("[")
	for i, row := range rows {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString("(")
		for j, value := range row {
			if j > 0 {
				out.WriteString(", ")
			}
			out.WriteString(literalValue(value))
		}
		if len(row) == 1 {
			out.WriteString(",")
		}
		out.WriteString(")")
	}
	out.WriteString("]")
	return out.String()
}

func errorResult(err error) Result {
	return Result{Text: "Error: " + err.Error(), Err: err}
}

func scanRow(rows *sql.Rows, width int) ([]any, error) {
	values := make([]any, width)
	targets := make([]any, width)
	for i := range values {
		targets[i] = &values[i]
	}
	if err := rows.Scan(targets...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	return values, nil
}

// literalValue quotes text so row boundaries stay unambiguous.
func literalValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return quote(typed)
	case []byte:
		return quote(string(typed))
	case time.Time:
		return quote(formatTime(typed))
	default:
		return plainValue(typed)
	}
}

func plainValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return typed
	case []byte:
		return string(typed)
	case time.Time:
		return formatTime(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	default:
		return fmt.Sprint(typed)
	}
}

func formatTime(value time.Time) string {
	if value.Hour() == 0 && value.Minute() == 0 && value.Second() == 0 && value.Nanosecond() == 0 {
		return value.Format(time.DateOnly)
	}
	return value.Format(time.RFC3339)
}

func quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `\'`) + "'"
}
