package catalog

import (
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
	"golang.org/x/text/cases"
)

// FactTable is the table holding one row per retrievable catalog entry.
const FactTable = "data_catalog_entry"

// Value is one cell of a catalog table: scalar text or an array.
type Value struct {
	text  string
	array []any
	isArr bool
}

// Text returns a scalar value.
func Text(s string) Value { return Value{text: s} }

// Array returns an array value.
func Array(items ...any) Value { return Value{array: items, isArr: true} }

// ParseValue decodes a raw CSV cell. A cell starting with '[' is an array
// written with either quote style.
func ParseValue(raw string) (Value, error) {
	if len(raw) == 0 || raw[0] != '[' {
		return Text(raw), nil
	}
	var items []any
	if err := json.Unmarshal([]byte(strings.ReplaceAll(raw, "'", `"`)), &items); err != nil {
		return Value{}, fmt.Errorf("parsing array cell %q: %w", raw, err)
	}
	return Value{text: raw, array: items, isArr: true}, nil
}

// IsArray reports whether the cell holds an array.
func (v Value) IsArray() bool { return v.isArr }

// Empty reports whether the cell holds nothing.
func (v Value) Empty() bool {
	if v.isArr {
		return len(v.array) == 0
	}
	return v.text == ""
}

// String returns the scalar text, or the array in JSON form.
func (v Value) String() string {
	if !v.isArr {
		return v.text
	}
	b, err := json.Marshal(v.array)
	if err != nil {
		return v.text
	}
	return string(b)
}

// Strings returns the array items as strings, or the scalar as a one item slice.
func (v Value) Strings() []string {
	if !v.isArr {
		if v.text == "" {
			return nil
		}
		return []string{v.text}
	}
	out := make([]string, len(v.array))
	for i, item := range v.array {
		out[i] = cast.ToString(item)
	}
	return out
}

// Ints returns the array items as integers.
func (v Value) Ints() ([]int, error) {
	if !v.isArr {
		n, err := cast.ToIntE(v.text)
		if err != nil {
			return nil, err
		}
		return []int{n}, nil
	}
	out := make([]int, len(v.array))
	for i, item := range v.array {
		f, err := cast.ToFloat64E(item)
		if err != nil {
			return nil, fmt.Errorf("item %d of %s: %w", i, v.String(), err)
		}
		out[i] = int(f)
	}
	return out, nil
}

// Floats returns the array items as floats.
func (v Value) Floats() ([]float64, error) {
	if !v.isArr {
		f, err := cast.ToFloat64E(v.text)
		if err != nil {
			return nil, err
		}
		return []float64{f}, nil
	}
	out := make([]float64, len(v.array))
	for i, item := range v.array {
		f, err := cast.ToFloat64E(item)
		if err != nil {
			return nil, fmt.Errorf("item %d of %s: %w", i, v.String(), err)
		}
		out[i] = f
	}
	return out, nil
}

// Row is one table row. Field order follows the table columns.
type Row struct {
	columns []string
	values  map[string]Value
}

// NewRow creates an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]Value)}
}

// ID returns the row key.
func (r *Row) ID() string { return r.values["id"].text }

// Get returns the value of a column and whether the row has it.
func (r *Row) Get(col string) (Value, bool) {
	v, ok := r.values[col]
	return v, ok
}

// String returns the text of a column, empty when missing.
func (r *Row) String(col string) string {
	v, ok := r.values[col]
	if !ok {
		return ""
	}
	return v.String()
}

// Set stores a value, appending the column when new.
func (r *Row) Set(col string, v Value) {
	if _, ok := r.values[col]; !ok {
		r.columns = append(r.columns, col)
	}
	r.values[col] = v
}

// Columns returns the row's column names in insertion order.
func (r *Row) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Table is one catalog table.
type Table struct {
	Name    string
	Columns []string

	// IDs lists row ids in file order, duplicates included.
	IDs []string

	rows map[string]*Row
}

// NewTable creates an empty table.
func NewTable(name string, columns []string) *Table {
	return &Table{
		Name:    name,
		Columns: columns,
		rows:    make(map[string]*Row),
	}
}

// Add appends a row. The first row stored under an id wins lookups.
func (t *Table) Add(r *Row) {
	id := r.ID()
	t.IDs = append(t.IDs, id)
	if _, ok := t.rows[id]; !ok {
		t.rows[id] = r
	}
}

// Row returns the row with the given id, or nil.
func (t *Table) Row(id string) *Row {
	return t.rows[id]
}

// Rows returns the rows in file order, one per distinct id.
func (t *Table) Rows() []*Row {
	seen := make(map[string]bool, len(t.IDs))
	out := make([]*Row, 0, len(t.rows))
	for _, id := range t.IDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, t.rows[id])
	}
	return out
}

// HasColumn reports whether the table declares the column.
func (t *Table) HasColumn(col string) bool {
	return t.columnIndex(col) >= 0
}

func (t *Table) columnIndex(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// insertColumn places col right after position at and returns the next free position.
func (t *Table) insertColumn(at int, col string) int {
	t.Columns = append(t.Columns, "")
	copy(t.Columns[at+1:], t.Columns[at:])
	t.Columns[at] = col
	return at + 1
}

// Model is the set of catalog tables.
type Model struct {
	tables map[string]*Table
	folded map[string]string
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{
		tables: make(map[string]*Table),
		folded: make(map[string]string),
	}
}

// AddTable registers a table, replacing any table with the same name.
func (m *Model) AddTable(t *Table) {
	m.tables[t.Name] = t
	m.folded[fold(t.Name)] = t.Name
}

// Table returns the named table, or nil. Names match case-insensitively.
func (m *Model) Table(name string) *Table {
	if t, ok := m.tables[name]; ok {
		return t
	}
	return m.tables[m.folded[fold(name)]]
}

// Dimensions returns every table except the fact table, sorted.
func (m *Model) Dimensions() []string {
	var names []string
	for _, name := range m.TableNames() {
		if name != FactTable {
			names = append(names, name)
		}
	}
	return names
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// Fact returns the catalog entry table, or nil when the model has none.
func (m *Model) Fact() *Table {
	return m.tables[FactTable]
}

// TableNames returns all table names sorted.
func (m *Model) TableNames() []string {
	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForeignKeys returns the columns of table that name another table.
func (m *Model) ForeignKeys(table string) []string {
	t := m.tables[table]
	if t == nil {
		return nil
	}
	var fks []string
	for _, col := range t.Columns {
		if col == "id" || col == table {
			continue
		}
		if _, ok := m.tables[col]; ok {
			fks = append(fks, col)
		}
	}
	return fks
}
