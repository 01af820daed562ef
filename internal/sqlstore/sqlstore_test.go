package sqlstore

import (
	"bytes"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/hydro-catalog/internal/catalog"
	"github.com/hurou927/hydro-catalog/internal/catalog/catalogtest"
	"github.com/hurou927/hydro-catalog/internal/graph"
)

func rawModel(t *testing.T) *catalog.Model {
	t.Helper()
	m, err := catalog.ReadDir(catalogtest.Dir(t, "/data"))
	require.NoError(t, err)
	return m
}

func TestColumnType(t *testing.T) {
	assert.Equal(t, "date", ColumnType("dataset_start_date"))
	assert.Equal(t, "json", ColumnType("shape"))
	assert.Equal(t, "json", ColumnType("latlng_bounds"))
	assert.Equal(t, "varchar(1500)", ColumnType("description"))
	assert.Equal(t, "varchar(1500)", ColumnType("path"))
	assert.Equal(t, "varchar(100)", ColumnType("dataset"))
	assert.Equal(t, "varchar(100)", ColumnType("id"))
}

func TestFromCatalog(t *testing.T) {
	m := rawModel(t)

	tbl := FromCatalog("development", m, catalog.FactTable)
	require.NotNil(t, tbl)
	assert.Equal(t, "development.data_catalog_entry", tbl.FullName())
	assert.Equal(t, "id", tbl.Columns[0].Name)
	assert.Equal(t, []ForeignKey{
		{Column: "dataset", ParentTable: "dataset"},
		{Column: "file_type", ParentTable: "file_type"},
		{Column: "variable", ParentTable: "variable"},
		{Column: "period", ParentTable: "period"},
		{Column: "aggregation", ParentTable: "aggregation"},
		{Column: "grid", ParentTable: "grid"},
	}, tbl.ForeignKeys)

	grid := FromCatalog("", m, "grid")
	assert.Equal(t, "grid", grid.FullName())
	assert.Contains(t, grid.Columns, Column{Name: "shape", DataType: "json"})
	assert.Empty(t, grid.ForeignKeys)

	assert.Nil(t, FromCatalog("development", m, "nope"))
}

func TestBuildQueries(t *testing.T) {
	tbl := &Table{
		Schema:      "development",
		Name:        "variable",
		Columns:     []Column{{"id", "varchar(100)"}, {"unit_type", "varchar(100)"}},
		ForeignKeys: []ForeignKey{{Column: "unit_type", ParentTable: "unit_type"}},
	}

	assert.Equal(t, `DROP TABLE IF EXISTS "development"."variable" CASCADE`, buildDropQuery(tbl))
	assert.Equal(t,
		`CREATE TABLE "development"."variable" ("id" varchar(100), "unit_type" varchar(100), PRIMARY KEY ("id"))`,
		buildCreateQuery(tbl))
	assert.Equal(t, `SELECT "id", "unit_type" FROM "development"."variable" ORDER BY "id"`, buildSelectQuery(tbl))

	q := buildIntegrityQuery(tbl, tbl.ForeignKeys[0])
	assert.Contains(t, q, `LEFT OUTER JOIN "development"."unit_type" p ON c."unit_type" = p."id"`)
	assert.Contains(t, q, `c."unit_type" IS NOT NULL`)

	assert.Equal(t, "variable_unit_type", constraintName(tbl, tbl.ForeignKeys[0]))
	assert.Equal(t, []string{
		`ALTER TABLE "development"."variable" DROP CONSTRAINT IF EXISTS "variable_unit_type"`,
		`ALTER TABLE "development"."variable" ADD CONSTRAINT "variable_unit_type" FOREIGN KEY ("unit_type") REFERENCES "development"."unit_type" ("id")`,
	}, buildConstraintQueries(tbl, tbl.ForeignKeys[0]))

	grants := buildGrantQueries("public", []string{"reader"}, []string{"writer"})
	require.Len(t, grants, 4)
	assert.Equal(t, `GRANT SELECT ON ALL TABLES IN SCHEMA "public" TO "reader"`, grants[0])
	assert.Equal(t, `GRANT ALL ON SCHEMA "public" TO "writer"`, grants[3])
	assert.Empty(t, buildGrantQueries("public", nil, nil))

	bare := &Table{Name: `odd"name`}
	assert.Equal(t, `DROP TABLE IF EXISTS "odd""name" CASCADE`, buildDropQuery(bare))
}

func TestInsertRows(t *testing.T) {
	m := rawModel(t)

	dataset := FromCatalog("", m, "dataset")
	rows, err := insertRows(dataset, m.Table("dataset"))
	require.NoError(t, err)
	require.Len(t, rows, 7)

	idx := slices.Index(dataset.ColumnNames(), "dataset_start_date")
	assert.Equal(t, "NLDAS2", rows[0][0])
	assert.Equal(t, time.Date(2002, 10, 1, 0, 0, 0, 0, time.UTC), rows[0][idx])
	assert.Nil(t, rows[2][idx], "conus1_domain has no start date")
	assert.Nil(t, rows[0][slices.Index(dataset.ColumnNames(), "dataset_dois")])

	grid := FromCatalog("", m, "grid")
	rows, err = insertRows(grid, m.Table("grid"))
	require.NoError(t, err)
	assert.Equal(t, "[5,1888,3342]", rows[0][slices.Index(grid.ColumnNames(), "shape")])

	short := &Table{Name: "dataset", Columns: []Column{{"id", "varchar(100)"}, {"description", "varchar(5)"}}}
	_, err = insertRows(short, m.Table("dataset"))
	assert.ErrorContains(t, err, "Unable to insert data catalog row 'NLDAS2' into table 'dataset'")
}

func TestInsertValueDates(t *testing.T) {
	col := Column{Name: "dataset_end_date", DataType: "date"}
	want := time.Date(2006, 9, 30, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2006-09-30", "09-30-2006", "09/30/06", "09/30/2006"} {
		row := catalog.NewRow()
		row.Set("id", catalog.Text("x"))
		row.Set(col.Name, catalog.Text(s))
		v, err := insertValue(row, col)
		require.NoError(t, err)
		assert.Equal(t, want, v, s)
	}

	row := catalog.NewRow()
	row.Set(col.Name, catalog.Text("someday"))
	v, err := insertValue(row, col)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMaxLen(t *testing.T) {
	assert.Equal(t, 100, maxLen("varchar(100)"))
	assert.Equal(t, 1500, maxLen("varchar(1500)"))
	assert.Greater(t, maxLen("text"), 1<<30)
}

func TestExportValue(t *testing.T) {
	assert.Equal(t, "", exportValue(nil))
	assert.Equal(t, "2005-10-01", exportValue(time.Date(2005, 10, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "NLDAS2", exportValue("NLDAS2"))
	assert.Equal(t, "[5,1888,3342]", exportValue([]any{float64(5), float64(1888), float64(3342)}))
	assert.Equal(t, `{"a":1}`, exportValue([]byte(`{"a":1}`)))
	assert.Equal(t, "1000", exportValue(int32(1000)))
}

func TestImportOrder(t *testing.T) {
	order, err := importOrder(rawModel(t))
	require.NoError(t, err)
	require.Len(t, order, 10)

	pos := func(name string) int { return slices.Index(order, name) }
	assert.Less(t, pos("dataset_type"), pos("dataset"))
	assert.Less(t, pos("unit_type"), pos("variable"))
	assert.Less(t, pos("variable_type"), pos("variable"))
	for _, parent := range []string{"dataset", "variable", "grid", "period", "file_type", "aggregation"} {
		assert.Less(t, pos(parent), pos(catalog.FactTable), parent)
	}
}

func TestCheckDuplicates(t *testing.T) {
	tbl := catalog.NewTable("period", []string{"id"})
	for _, id := range []string{"daily", "hourly", "daily"} {
		row := catalog.NewRow()
		row.Set("id", catalog.Text(id))
		tbl.Add(row)
	}
	err := checkDuplicates(tbl)
	var dup *DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "daily", dup.Key)
	assert.EqualError(t, err, "Duplicate key 'daily' while inserting into table 'period'")

	assert.NoError(t, checkDuplicates(rawModel(t).Table("period")))
}

func TestSchemaSource(t *testing.T) {
	s := Schema{
		"variable":  {Name: "variable", ForeignKeys: []ForeignKey{{"unit_type", "unit_type"}, {"variable", "variable"}}},
		"unit_type": {Name: "unit_type"},
	}
	assert.Equal(t, []string{"unit_type", "variable"}, s.TableNames())
	assert.Equal(t, []string{"unit_type"}, s.ForeignKeys("variable"))
	assert.Nil(t, s.ForeignKeys("missing"))

	g := graph.Build(s, nil)
	assert.Equal(t, []string{"unit_type"}, g.Parents["variable"])
}

func TestIntegrityError(t *testing.T) {
	err := &IntegrityError{Violations: []catalog.Violation{
		{Table: "variable", Row: "swe", Column: "unit_type", Value: "inches"},
	}}
	assert.True(t, strings.HasPrefix(err.Error(), "failed validation check: 1 violation(s)\n"))
	assert.Contains(t, err.Error(), "inches")
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	m := rawModel(t)
	n, err := Dump(&buf, "development", m)
	require.NoError(t, err)
	want := 0
	for _, name := range m.TableNames() {
		want += len(m.Table(name).Rows())
	}
	assert.Equal(t, want, n)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "BEGIN;\n"))
	assert.True(t, strings.HasSuffix(out, "COMMIT;\n"))
	assert.Contains(t, out, `COPY "development"."period" ("id", "description") FROM stdin;`)
	assert.Contains(t, out, "NLDAS2\tNLDAS2 forcing for CONUS1\tforcing\t")
	assert.Contains(t, out, "\t2002-10-01\t2006-09-30\tfalse\n")
	assert.Contains(t, out, `ADD CONSTRAINT "data_catalog_entry_grid" FOREIGN KEY ("grid")`)

	assert.Less(t, strings.Index(out, `CREATE TABLE "development"."dataset_type"`),
		strings.Index(out, `CREATE TABLE "development"."dataset" (`))
	assert.Less(t, strings.Index(out, `COPY "development"."data_catalog_entry"`),
		strings.Index(out, "ADD CONSTRAINT"))

	_, err = Dump(&buf, "development", catalog.NewModel())
	assert.ErrorIs(t, err, catalog.ErrNoSuchTable)
}
