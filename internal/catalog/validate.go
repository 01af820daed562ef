package catalog

import (
	"fmt"
	"io"
)

// Violation is one integrity problem found by Validate.
type Violation struct {
	Table  string
	Row    string
	Column string // empty for duplicate ids
	Value  string
}

func (v Violation) String() string {
	if v.Column == "" {
		return fmt.Sprintf("Duplicate id '%s' in table '%s'", v.Row, v.Table)
	}
	return fmt.Sprintf("Invalid value '%s' in column '%s' of row '%s' of %s table.", v.Value, v.Column, v.Row, v.Table)
}

// Report collects the violations of a model.
type Report struct {
	Violations []Violation
}

// OK reports whether no violation was found.
func (r Report) OK() bool { return len(r.Violations) == 0 }

// WriteTo writes one line per violation.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, v := range r.Violations {
		k, err := fmt.Fprintln(w, v.String())
		n += int64(k)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Validate checks every table for duplicate ids and for values in
// foreign key columns that name no row of the referenced table.
func Validate(m *Model) Report {
	var r Report
	for _, name := range m.TableNames() {
		t := m.Table(name)
		seen := make(map[string]bool, len(t.IDs))
		for _, id := range t.IDs {
			if seen[id] {
				r.Violations = append(r.Violations, Violation{Table: name, Row: id})
			}
			seen[id] = true
		}

		fks := m.ForeignKeys(name)
		for _, row := range t.Rows() {
			for _, col := range fks {
				v, ok := row.Get(col)
				if !ok || v.Empty() || v.IsArray() {
					continue
				}
				val := v.String()
				if m.Table(col).Row(val) == nil {
					r.Violations = append(r.Violations, Violation{Table: name, Row: row.ID(), Column: col, Value: val})
				}
			}
		}
	}
	return r
}
