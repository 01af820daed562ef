package catalog

import (
	"github.com/hurou927/hydro-catalog/internal/graph"
)

// DatasetTable is the dimension table whose attributes are copied whole into the fact table.
const DatasetTable = "dataset"

// Denormalize materializes dimension attributes on every fact row so that
// filtering by them needs no join.
//
// For each dimension table referenced by a fact column, that table's own
// columns naming other tables are inserted right after the referencing
// column. Then every non-id column of the dataset table is appended. Values
// are filled by following the foreign key of each fact row. Tables caught
// in FK cycles are visited too.
func Denormalize(m *Model) error {
	fact := m.Fact()
	if fact == nil {
		return nil
	}

	order := graph.TopoSortAll(graph.Build(m, nil)).Reverse()

	for _, dim := range order {
		if dim == FactTable || !fact.HasColumn(dim) {
			continue
		}
		dimTable := m.Table(dim)
		at := fact.columnIndex(dim) + 1
		for _, col := range dimTable.Columns {
			if col == "id" || fact.HasColumn(col) || m.Table(col) == nil {
				continue
			}
			at = fact.insertColumn(at, col)
			fill(fact, dimTable, dim, col)
		}
	}

	if ds := m.Table(DatasetTable); ds != nil && fact.HasColumn(DatasetTable) {
		for _, col := range ds.Columns {
			if col == "id" || fact.HasColumn(col) {
				continue
			}
			fact.Columns = append(fact.Columns, col)
			fill(fact, ds, DatasetTable, col)
		}
	}
	return nil
}

// fill copies dim[fk].col into col of every fact row with a resolvable fk.
func fill(fact, dim *Table, fk, col string) {
	for _, row := range fact.rows {
		key := row.String(fk)
		if key == "" {
			continue
		}
		src := dim.Row(key)
		if src == nil {
			continue
		}
		if v, ok := src.Get(col); ok {
			row.Set(col, v)
		}
	}
}
