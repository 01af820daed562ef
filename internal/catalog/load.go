package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ParseError reports a malformed table file.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parsing %s line %d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("parsing %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LoadDir reads every <table>.csv file in dir and denormalizes the result.
func LoadDir(dir string) (*Model, error) {
	m, err := ReadDir(dir)
	if err != nil {
		return nil, err
	}
	if err := Denormalize(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadDir reads every <table>.csv file in dir without denormalizing.
func ReadDir(dir string) (*Model, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading catalog directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	m := NewModel()
	for _, name := range files {
		t, err := readTableFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		m.AddTable(t)
	}
	return m, nil
}

func readTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening table file: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t, err := ReadTable(name, f)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.File = filepath.Base(path)
		}
		return nil, err
	}
	return t, nil
}

// ReadTable parses one table in CSV form. The first header cell always names the id column.
func ReadTable(name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ParseError{File: name, Err: errors.New("missing header")}
	}
	if err != nil {
		return nil, csvError(name, err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}
	columns[0] = "id"
	t := NewTable(name, columns)

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(name, err)
		}
		line, _ := cr.FieldPos(0)

		row := NewRow()
		for i, cell := range record {
			if i == 0 {
				row.Set("id", Text(cell))
				continue
			}
			v, err := ParseValue(cell)
			if err != nil {
				return nil, &ParseError{File: name, Line: line, Err: fmt.Errorf("column %s: %w", columns[i], err)}
			}
			row.Set(columns[i], v)
		}
		t.Add(row)
	}
	return t, nil
}

// TableFromRecords builds a table from a header and raw cell rows.
func TableFromRecords(name string, header []string, records [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, &ParseError{File: name, Err: errors.New("missing header")}
	}
	columns := append([]string{"id"}, header[1:]...)
	t := NewTable(name, columns)
	for i, record := range records {
		if len(record) != len(columns) {
			return nil, &ParseError{File: name, Line: i + 2,
				Err: fmt.Errorf("expected %d fields, got %d", len(columns), len(record))}
		}
		row := NewRow()
		row.Set("id", Text(record[0]))
		for j := 1; j < len(record); j++ {
			v, err := ParseValue(record[j])
			if err != nil {
				return nil, &ParseError{File: name, Line: i + 2, Err: err}
			}
			row.Set(columns[j], v)
		}
		t.Add(row)
	}
	return t, nil
}

func csvError(name string, err error) error {
	var ce *csv.ParseError
	if errors.As(err, &ce) {
		return &ParseError{File: name, Line: ce.Line, Err: ce.Err}
	}
	return &ParseError{File: name, Err: err}
}
