package sqlstore

import (
	"fmt"
	"io"

	"github.com/hurou927/hydro-catalog/internal/catalog"
	"github.com/hurou927/hydro-catalog/internal/output"
)

// Dump writes m as a psql script that recreates every table of the model in
// schema: one transaction with DROP, CREATE and COPY per table, parents
// first, followed by the FK constraints. It returns the number of rows
// written.
func Dump(w io.Writer, schema string, m *catalog.Model) (int, error) {
	if m.Fact() == nil {
		return 0, fmt.Errorf("%w: %s", catalog.ErrNoSuchTable, catalog.FactTable)
	}
	order, err := importOrder(m)
	if err != nil {
		return 0, err
	}

	cw := output.NewWriter(w)
	if err := cw.WriteHeader(); err != nil {
		return 0, err
	}
	tables := make([]*Table, 0, len(order))
	for _, name := range order {
		src := m.Table(name)
		if err := checkDuplicates(src); err != nil {
			return 0, err
		}
		t := FromCatalog(schema, m, name)
		tables = append(tables, t)

		rows, err := insertRows(t, src)
		if err != nil {
			return 0, err
		}
		if err := cw.WriteStatement(buildDropQuery(t)); err != nil {
			return 0, err
		}
		if err := cw.WriteStatement(buildCreateQuery(t)); err != nil {
			return 0, err
		}
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = ident(c.Name)
		}
		if err := cw.WriteTableData(tableIdent(t), cols, rows); err != nil {
			return 0, err
		}
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			for _, q := range buildConstraintQueries(t, fk) {
				if err := cw.WriteStatement(q); err != nil {
					return 0, err
				}
			}
		}
	}
	_, n := cw.Counts()
	return n, cw.WriteFooter()
}
