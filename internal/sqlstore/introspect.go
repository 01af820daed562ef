package sqlstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
)

// Schema is the set of tables found in one PostgreSQL schema, keyed by name.
type Schema map[string]*Table

// TableNames returns the table names sorted.
func (s Schema) TableNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForeignKeys returns the FK columns of table that reference another table.
func (s Schema) ForeignKeys(table string) []string {
	t := s[table]
	if t == nil {
		return nil
	}
	var cols []string
	for _, fk := range t.ForeignKeys {
		if fk.ParentTable != table {
			cols = append(cols, fk.Column)
		}
	}
	return cols
}

// Introspect queries the PostgreSQL catalogs for the tables, columns and
// foreign keys of schema.
func Introspect(ctx context.Context, conn Conn, schema string) (Schema, error) {
	tables, err := queryTablesAndColumns(ctx, conn, schema)
	if err != nil {
		return nil, fmt.Errorf("querying tables and columns: %w", err)
	}
	if err := queryForeignKeys(ctx, conn, schema, tables); err != nil {
		return nil, fmt.Errorf("querying foreign keys: %w", err)
	}
	return tables, nil
}

func queryTablesAndColumns(ctx context.Context, conn Conn, schema string) (Schema, error) {
	query := `
		SELECT
			c.relname AS table_name,
			a.attname AS column_name,
			format_type(a.atttypid, a.atttypmod) AS data_type
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid
		WHERE c.relkind = 'r'
			AND a.attnum > 0
			AND NOT a.attisdropped
			AND n.nspname = $1
		ORDER BY c.relname, a.attnum
	`

	rows, err := conn.Query(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make(Schema)
	for rows.Next() {
		var tableName, colName, dataType string
		if err := rows.Scan(&tableName, &colName, &dataType); err != nil {
			return nil, err
		}
		tbl, ok := tables[tableName]
		if !ok {
			tbl = &Table{Schema: schema, Name: tableName}
			tables[tableName] = tbl
		}
		tbl.Columns = append(tbl.Columns, Column{Name: colName, DataType: dataType})
	}
	return tables, rows.Err()
}

func queryForeignKeys(ctx context.Context, conn Conn, schema string, tables Schema) error {
	query := `
		SELECT
			cc.relname AS child_table,
			ca.attname AS child_column,
			pc.relname AS parent_table
		FROM pg_constraint con
		JOIN pg_class cc ON cc.oid = con.conrelid
		JOIN pg_namespace cn ON cn.oid = cc.relnamespace
		JOIN pg_class pc ON pc.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey) AS u(attnum)
		JOIN pg_attribute ca ON ca.attrelid = cc.oid AND ca.attnum = u.attnum
		WHERE con.contype = 'f'
			AND cn.nspname = $1
		ORDER BY cc.relname, con.conname
	`

	rows, err := conn.Query(ctx, query, schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	var child, column, parent string
	_, err = pgx.ForEachRow(rows, []any{&child, &column, &parent}, func() error {
		if tbl, ok := tables[child]; ok {
			tbl.ForeignKeys = append(tbl.ForeignKeys, ForeignKey{Column: column, ParentTable: parent})
		}
		return nil
	})
	return err
}
