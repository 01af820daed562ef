package sqlstore

import (
	"strings"

	"github.com/hurou927/hydro-catalog/internal/catalog"
)

// Column is one column of a catalog table as stored in PostgreSQL.
type Column struct {
	Name     string
	DataType string // PostgreSQL type name (e.g. "date", "json", "varchar(100)")
}

// ForeignKey is a column naming the id of another table.
type ForeignKey struct {
	Column      string
	ParentTable string
}

// Table is a catalog table with its PostgreSQL column types.
type Table struct {
	Schema      string
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
}

// FullName returns schema-qualified table name.
func (t *Table) FullName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ColumnNames returns all column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// longText are the free text columns stored wider than the rest.
var longText = map[string]bool{
	"description":         true,
	"notes":               true,
	"title":               true,
	"path":                true,
	"documentation_notes": true,
	"level_description":   true,
}

// jsonColumns hold array values.
var jsonColumns = map[string]bool{
	"shape":         true,
	"latlng_bounds": true,
	"origin":        true,
}

// ColumnType returns the PostgreSQL type used for a catalog column.
func ColumnType(name string) string {
	switch {
	case strings.Contains(name, "date"):
		return "date"
	case jsonColumns[name]:
		return "json"
	case longText[name]:
		return "varchar(1500)"
	}
	return "varchar(100)"
}

// FromCatalog describes the table name of m for schema.
func FromCatalog(schema string, m *catalog.Model, name string) *Table {
	src := m.Table(name)
	if src == nil {
		return nil
	}
	t := &Table{Schema: schema, Name: src.Name}
	for _, col := range src.Columns {
		t.Columns = append(t.Columns, Column{Name: col, DataType: ColumnType(col)})
	}
	for _, col := range m.ForeignKeys(src.Name) {
		t.ForeignKeys = append(t.ForeignKeys, ForeignKey{Column: col, ParentTable: col})
	}
	return t
}
