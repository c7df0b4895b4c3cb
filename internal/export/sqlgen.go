package export

import (
	"fmt"
	"strings"

	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/go-gota/gota/series"
	"github.com/jackc/pgx/v5"
)

// Dialect describes the SQL differences between the relational sinks.
type Dialect struct {
	Types       map[series.Type]string
	Name        string
	Placeholder func(n int) string
}

// SQL dialects.
var (
	SQLite = Dialect{
		Name: "sqlite",
		Types: map[series.Type]string{
			series.Int:    "INTEGER",
			series.Float:  "REAL",
			series.Bool:   "INTEGER",
			series.String: "TEXT",
		},
		Placeholder: func(int) string { return "?" },
	}
	Postgres = Dialect{
		Name: "postgres",
		Types: map[series.Type]string{
			series.Int:    "BIGINT",
			series.Float:  "DOUBLE PRECISION",
			series.Bool:   "BOOLEAN",
			series.String: "TEXT",
		},
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
)

// QuoteIdent quotes a table or column name.
func QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// DropTableSQL removes a previous export of the table.
func (d Dialect) DropTableSQL(t dataset.Table) string {
	return "DROP TABLE IF EXISTS " + QuoteIdent(t.Name)
}

// CreateTableSQL declares one column per frame column, typed by its element type.
func (d Dialect) CreateTableSQL(t dataset.Table) string {
	names := t.Frame.Names()
	types := t.Frame.Types()
	cols := make([]string, len(names))
	for i, n := range names {
		typ, ok := d.Types[types[i]]
		if !ok {
			typ = d.Types[series.String]
		}
		cols[i] = QuoteIdent(n) + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(t.Name), strings.Join(cols, ", "))
}

// InsertSQL inserts one row with a placeholder per column.
func (d Dialect) InsertSQL(t dataset.Table) string {
	names := t.Frame.Names()
	cols := make([]string, len(names))
	marks := make([]string, len(names))
	for i, n := range names {
		cols[i] = QuoteIdent(n)
		marks[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(t.Name), strings.Join(cols, ", "), strings.Join(marks, ", "))
}
