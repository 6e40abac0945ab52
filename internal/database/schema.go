package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

const maxSampleValueLength = 100

const columnsQuery = `
SELECT c.table_name, c.column_name, c.data_type, c.is_nullable
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`

type column struct {
	Name     string
	DataType string
	Nullable bool
}

type table struct {
	Name    string
	Columns []column
}

// TableInfo renders every table in the configured schema as a CREATE TABLE
// statement followed by a comment with a few sample rows. The text is placed
// verbatim into the query prompt.
func (d *DB) TableInfo(ctx context.Context) (string, error) {
	tables, err := d.listTables(ctx)
	if err != nil {
		return "", err
	}

	blocks := make([]string, 0, len(tables))
	for _, t := range tables {
		var block strings.Builder
		block.WriteString(createTableStatement(t))
		if sample, ok := d.sampleRowsBlock(ctx, t); ok {
			block.WriteString("\n\n")
			block.WriteString(sample)
		}
		blocks = append(blocks, block.String())
	}
	return strings.Join(blocks, "\n\n"), nil
}

func (d *DB) listTables(ctx context.Context) ([]table, error) {
	rows, err := d.db.QueryContext(ctx, columnsQuery, d.schema)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]table, 0)
	for rows.Next() {
		var tableName, columnName, dataType, nullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		if len(d.includeTables) > 0 {
			if _, ok := d.includeTables[tableName]; !ok {
				continue
			}
		}
		if len(tables) == 0 || tables[len(tables)-1].Name != tableName {
			tables = append(tables, table{Name: tableName})
		}
		current := &tables[len(tables)-1]
		current.Columns = append(current.Columns, column{
			Name:     columnName,
			DataType: dataType,
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	return tables, nil
}

func createTableStatement(t table) string {
	lines := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		line := "\t" + col.Name + " " + col.DataType
		if !col.Nullable {
			line += " NOT NULL"
		}
		lines = append(lines, line)
	}
	return "CREATE TABLE " + t.Name + " (\n" + strings.Join(lines, ", \n") + "\n)"
}

// sampleRowsBlock returns false when sampling is disabled or the table cannot
// be read with the configured credentials.
func (d *DB) sampleRowsBlock(ctx context.Context, t table) (string, bool) {
	if d.sampleRows <= 0 || len(t.Columns) == 0 {
		return "", false
	}

	names := make([]string, 0, len(t.Columns))
	quoted := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		names = append(names, col.Name)
		quoted = append(quoted, pq.QuoteIdentifier(col.Name))
	}
	query := "SELECT " + strings.Join(quoted, ", ") +
		" FROM " + pq.QuoteIdentifier(d.schema) + "." + pq.QuoteIdentifier(t.Name) +
		" LIMIT " + strconv.Itoa(d.sampleRows)

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return "", false
	}
	defer func() { _ = rows.Close() }()

	var block strings.Builder
	block.WriteString("/*\n")
	block.WriteString(strconv.Itoa(d.sampleRows) + " rows from " + t.Name + " table:\n")
	block.WriteString(strings.Join(names, "\t"))
	for rows.Next() {
		values, err := scanRow(rows, len(t.Columns))
		if err != nil {
			return "", false
		}
		cells := make([]string, 0, len(values))
		for _, value := range values {
			cells = append(cells, truncate(plainValue(value), maxSampleValueLength))
		}
		block.WriteString("\n")
		block.WriteString(strings.Join(cells, "\t"))
	}
	if err := rows.Err(); err != nil {
		return "", false
	}
	block.WriteString("\n*/")
	return block.String(), true
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
