// Package sqlstore copies the catalog model to and from PostgreSQL.
package sqlstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/hurou927/hydro-catalog/internal/catalog"
	"github.com/hurou927/hydro-catalog/internal/graph"
)

// Conn is the subset of a pool or transaction used by the store.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// Beginner starts transactions; *pgxpool.Pool implements it.
type Beginner interface {
	Conn
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store imports, exports and drops catalog tables in one schema.
type Store struct {
	DB      Beginner
	Schema  string
	ROUsers []string
	RWUsers []string
	Logger  logrus.FieldLogger
}

// DuplicateKeyError reports an id present twice in one table.
type DuplicateKeyError struct {
	Table string
	Key   string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("Duplicate key '%s' while inserting into table '%s'", e.Key, e.Table)
}

// IntegrityError lists the FK values that name no row of the referenced table.
type IntegrityError struct {
	Violations []catalog.Violation
}

func (e *IntegrityError) Error() string {
	lines := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		lines[i] = v.String()
	}
	return fmt.Sprintf("failed validation check: %d violation(s)\n%s", len(e.Violations), strings.Join(lines, "\n"))
}

func (s *Store) log() logrus.FieldLogger {
	if s.Logger != nil {
		return s.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Import replaces the tables of m in the schema, in one transaction:
// every table is dropped, created and filled, rights are granted, FK values
// are verified and then FK constraints are added. m must not be
// denormalized.
func (s *Store) Import(ctx context.Context, m *catalog.Model) error {
	if m.Fact() == nil {
		return fmt.Errorf("%w: %s", catalog.ErrNoSuchTable, catalog.FactTable)
	}
	order, err := importOrder(m)
	if err != nil {
		return err
	}
	tables := make([]*Table, len(order))
	for i, name := range order {
		tables[i] = FromCatalog(s.Schema, m, name)
		if err := checkDuplicates(m.Table(name)); err != nil {
			return err
		}
	}

	return pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		for i, t := range tables {
			if _, err := tx.Exec(ctx, buildDropQuery(t)); err != nil {
				return fmt.Errorf("Unable to drop table '%s': %w", t.Name, err)
			}
			if _, err := tx.Exec(ctx, buildCreateQuery(t)); err != nil {
				return fmt.Errorf("Unable to create table '%s': %w", t.Name, err)
			}
			rows, err := insertRows(t, m.Table(order[i]))
			if err != nil {
				return err
			}
			n, err := tx.CopyFrom(ctx, t.identifier(), t.ColumnNames(), pgx.CopyFromRows(rows))
			if err != nil {
				return fmt.Errorf("populating table '%s': %w", t.Name, err)
			}
			s.log().WithFields(logrus.Fields{"table": t.FullName(), "rows": n}).Info("imported table")
		}

		if len(s.ROUsers) > 0 || len(s.RWUsers) > 0 {
			for _, q := range buildGrantQueries(s.Schema, s.ROUsers, s.RWUsers) {
				if _, err := tx.Exec(ctx, q); err != nil {
					return fmt.Errorf("granting rights: %w", err)
				}
			}
		}

		if err := verifyIntegrity(ctx, tx, tables); err != nil {
			return err
		}
		for _, t := range tables {
			for _, fk := range t.ForeignKeys {
				for _, q := range buildConstraintQueries(t, fk) {
					if _, err := tx.Exec(ctx, q); err != nil {
						return fmt.Errorf("adding constraint %s: %w", constraintName(t, fk), err)
					}
				}
			}
		}
		return nil
	})
}

// importOrder lists parents before the tables referencing them.
func importOrder(m *catalog.Model) ([]string, error) {
	sorted := graph.TopoSortAll(graph.Build(m, nil))
	if err := graph.ValidateCycles(sorted); err != nil {
		return nil, err
	}
	return sorted.Complete(), nil
}

func checkDuplicates(t *catalog.Table) error {
	seen := make(map[string]bool, len(t.IDs))
	for _, id := range t.IDs {
		if seen[id] {
			return &DuplicateKeyError{Table: t.Name, Key: id}
		}
		seen[id] = true
	}
	return nil
}

func verifyIntegrity(ctx context.Context, conn Conn, tables []*Table) error {
	var violations []catalog.Violation
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			rows, err := conn.Query(ctx, buildIntegrityQuery(t, fk))
			if err != nil {
				return fmt.Errorf("checking %s.%s: %w", t.Name, fk.Column, err)
			}
			var id, value string
			_, err = pgx.ForEachRow(rows, []any{&id, &value}, func() error {
				violations = append(violations, catalog.Violation{Table: t.Name, Row: id, Column: fk.Column, Value: value})
				return nil
			})
			if err != nil {
				return fmt.Errorf("checking %s.%s: %w", t.Name, fk.Column, err)
			}
		}
	}
	if len(violations) > 0 {
		return &IntegrityError{Violations: violations}
	}
	return nil
}

// insertRows converts the rows of src to the column types of t.
func insertRows(t *Table, src *catalog.Table) ([][]any, error) {
	out := make([][]any, 0, len(src.IDs))
	for _, row := range src.Rows() {
		vals := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			v, err := insertValue(row, c)
			if err != nil {
				return nil, fmt.Errorf("Unable to insert data catalog row '%s' into table '%s': %w", row.ID(), t.Name, err)
			}
			vals[i] = v
		}
		out = append(out, vals)
	}
	return out, nil
}

// insertDateLayouts are the accepted spellings of date cells.
var insertDateLayouts = []string{"2006-01-02", "01-02-2006", "01-02-06", "01/02/06", "01/02/2006"}

func insertValue(row *catalog.Row, c Column) (any, error) {
	if c.Name == "id" {
		return row.ID(), nil
	}
	v, ok := row.Get(c.Name)
	if !ok || v.Empty() {
		return nil, nil
	}
	switch c.DataType {
	case "date":
		for _, layout := range insertDateLayouts {
			if t, err := time.Parse(layout, v.String()); err == nil {
				return t, nil
			}
		}
		return nil, nil
	case "json":
		return v.String(), nil
	}
	if len(v.String()) > maxLen(c.DataType) {
		return nil, fmt.Errorf("column %s is longer than %s", c.Name, c.DataType)
	}
	return v.String(), nil
}

func maxLen(dataType string) int {
	var n int
	if _, err := fmt.Sscanf(dataType, "varchar(%d)", &n); err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

// Export writes every table of the schema to dir as <table>.csv.
func (s *Store) Export(ctx context.Context, dir string) ([]string, error) {
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("The folder '%s' does not exist.", dir)
	}
	tables, err := Introspect(ctx, s.DB, s.Schema)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, errors.New("Unable to get list of tables")
	}
	var written []string
	for _, name := range tables.TableNames() {
		path := filepath.Join(dir, name+".csv")
		if err := s.exportTable(ctx, tables[name], path); err != nil {
			return nil, fmt.Errorf("exporting %s: %w", name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func (s *Store) exportTable(ctx context.Context, t *Table, path string) error {
	rows, err := s.DB.Query(ctx, buildSelectQuery(t))
	if err != nil {
		return err
	}
	defer rows.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.ColumnNames()); err != nil {
		f.Close()
		return err
	}
	n := 0
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			f.Close()
			return err
		}
		record := make([]string, len(vals))
		for i, v := range vals {
			record[i] = exportValue(v)
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	s.log().WithFields(logrus.Fields{"table": t.FullName(), "rows": n, "file": path}).Info("exported table")
	return f.Close()
}

// exportValue formats a database value as a catalog CSV cell.
func exportValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.Format("2006-01-02")
	case string:
		return x
	case []any:
		return catalog.Array(x...).String()
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}

// Drop removes the tables of m from the schema, children first.
func (s *Store) Drop(ctx context.Context, m *catalog.Model) error {
	for _, name := range graph.TopoSortAll(graph.Build(m, nil)).Reverse() {
		t := &Table{Schema: s.Schema, Name: name}
		if _, err := s.DB.Exec(ctx, buildDropQuery(t)); err != nil {
			return fmt.Errorf("Unable to drop table '%s': %w", name, err)
		}
		s.log().WithField("table", t.FullName()).Info("dropped table")
	}
	return nil
}
