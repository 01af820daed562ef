package catalog

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoSuchTable is returned when a table name matches no catalog table.
var ErrNoSuchTable = errors.New("no such table")

// AmbiguousRowError is returned by TableRow when more than one row matches.
type AmbiguousRowError struct {
	Table  string
	First  string
	Second string
}

func (e *AmbiguousRowError) Error() string {
	return fmt.Sprintf("Ambiguous result could be id %s or %s", e.First, e.Second)
}

// Matches reports whether a row field is compatible with a filter value.
// Empty filter values and empty or missing row fields never disqualify.
func Matches(row *Row, col, want string) bool {
	if want == "" {
		return true
	}
	v, ok := row.Get(col)
	if !ok || v.Empty() {
		return true
	}
	return v.String() == want
}

// MatchesAll applies Matches to every filter entry.
func MatchesAll(row *Row, filter map[string]string) bool {
	for col, want := range filter {
		if !Matches(row, col, want) {
			return false
		}
	}
	return true
}

// TableRows returns the rows of a table matching filter, in file order.
// A non-empty "id" filter takes the direct lookup path.
func TableRows(m *Model, table string, filter map[string]string) ([]*Row, error) {
	t := m.Table(table)
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchTable, table)
	}
	if id := filter["id"]; id != "" {
		row := t.Row(id)
		if row == nil || !MatchesAll(row, filter) {
			return nil, nil
		}
		return []*Row{row}, nil
	}

	var out []*Row
	for _, row := range t.Rows() {
		if MatchesAll(row, filter) {
			out = append(out, row)
		}
	}
	return out, nil
}

// TableRow returns the single row matching filter, or nil when none does.
func TableRow(m *Model, table string, filter map[string]string) (*Row, error) {
	rows, err := TableRows(m, table, filter)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0], nil
	}
	return nil, &AmbiguousRowError{Table: table, First: rows[0].ID(), Second: rows[1].ID()}
}

// DateRange returns the dataset_start_date and dataset_end_date of a dataset.
// ok is false when either is missing or unparsable.
func DateRange(m *Model, dataset string) (start, end time.Time, ok bool) {
	t := m.Table(DatasetTable)
	if t == nil {
		return time.Time{}, time.Time{}, false
	}
	row := t.Row(dataset)
	if row == nil {
		return time.Time{}, time.Time{}, false
	}
	return RowDateRange(row)
}

// RowDateRange reads dataset_start_date and dataset_end_date from a row.
func RowDateRange(row *Row) (start, end time.Time, ok bool) {
	s, errS := parseDate(row.String("dataset_start_date"))
	e, errE := parseDate(row.String("dataset_end_date"))
	if errS != nil || errE != nil {
		return time.Time{}, time.Time{}, false
	}
	return s, e, true
}

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", "01/02/2006"}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
