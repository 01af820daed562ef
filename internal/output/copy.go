// Package output writes psql scripts that load catalog tables with COPY.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Writer writes a psql script: a transaction holding statements and COPY
// blocks. Write errors are sticky; every method returns the first one.
type Writer struct {
	w      io.Writer
	err    error
	tables int
	rows   int
}

// NewWriter creates a new COPY output writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (cw *Writer) printf(format string, args ...any) error {
	if cw.err == nil {
		_, cw.err = fmt.Fprintf(cw.w, format, args...)
	}
	return cw.err
}

// WriteHeader opens the transaction and disables FK triggers for the load.
func (cw *Writer) WriteHeader() error {
	return cw.printf("BEGIN;\nSET session_replication_role = 'replica';\n\n")
}

// WriteFooter restores FK triggers and commits.
func (cw *Writer) WriteFooter() error {
	return cw.printf("SET session_replication_role = 'origin';\nCOMMIT;\n")
}

// WriteStatement writes one SQL statement terminated by a semicolon.
func (cw *Writer) WriteStatement(sql string) error {
	return cw.printf("%s;\n", sql)
}

// WriteTableData writes a COPY block for a single table. table and columns
// are written as given, so callers quote them. Nothing is written for an
// empty table.
func (cw *Writer) WriteTableData(table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return cw.err
	}
	cw.printf("COPY %s (%s) FROM stdin;\n", table, strings.Join(columns, ", "))
	vals := make([]string, len(columns))
	for _, row := range rows {
		vals = vals[:0]
		for _, v := range row {
			vals = append(vals, EscapeCopyValue(v))
		}
		cw.printf("%s\n", strings.Join(vals, "\t"))
	}
	if err := cw.printf("\\.\n\n"); err != nil {
		return err
	}
	cw.tables++
	cw.rows += len(rows)
	return nil
}

// Counts returns the number of COPY blocks and rows written so far.
func (cw *Writer) Counts() (tables, rows int) {
	return cw.tables, cw.rows
}
