package sqlstore

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

func ident(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}

func (t *Table) identifier() pgx.Identifier {
	if t.Schema == "" {
		return pgx.Identifier{t.Name}
	}
	return pgx.Identifier{t.Schema, t.Name}
}

func tableIdent(t *Table) string {
	return t.identifier().Sanitize()
}

// buildDropQuery drops a table and everything referencing it.
func buildDropQuery(t *Table) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", tableIdent(t))
}

// buildCreateQuery creates a table keyed by its first column.
func buildCreateQuery(t *Table) string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, ident(c.Name)+" "+c.DataType)
	}
	if len(t.Columns) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", ident(t.Columns[0].Name)))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", tableIdent(t), strings.Join(defs, ", "))
}

// buildIntegrityQuery selects the rows of t whose fk value names no parent row.
func buildIntegrityQuery(t *Table, fk ForeignKey) string {
	parent := &Table{Schema: t.Schema, Name: fk.ParentTable}
	col := ident(fk.Column)
	return fmt.Sprintf(
		"SELECT c.%s, c.%s FROM %s c LEFT OUTER JOIN %s p ON c.%s = p.%s WHERE p.%s IS NULL AND c.%s IS NOT NULL ORDER BY c.%s",
		ident("id"), col, tableIdent(t), tableIdent(parent), col, ident("id"), ident("id"), col, ident("id"))
}

func constraintName(t *Table, fk ForeignKey) string {
	return t.Name + "_" + fk.Column
}

// buildConstraintQueries replaces the FK constraint of fk on t.
func buildConstraintQueries(t *Table, fk ForeignKey) []string {
	parent := &Table{Schema: t.Schema, Name: fk.ParentTable}
	name := ident(constraintName(t, fk))
	return []string{
		fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", tableIdent(t), name),
		fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			tableIdent(t), name, ident(fk.Column), tableIdent(parent), ident("id")),
	}
}

// buildGrantQueries gives roUsers read access and rwUsers write access to
// every table in schema.
func buildGrantQueries(schema string, roUsers, rwUsers []string) []string {
	var qs []string
	s := ident(schema)
	for _, u := range roUsers {
		qs = append(qs,
			fmt.Sprintf("GRANT SELECT ON ALL TABLES IN SCHEMA %s TO %s", s, ident(u)),
			fmt.Sprintf("GRANT USAGE ON SCHEMA %s TO %s", s, ident(u)),
		)
	}
	for _, u := range rwUsers {
		qs = append(qs,
			fmt.Sprintf("GRANT TRUNCATE, DELETE, TRIGGER, UPDATE, REFERENCES, SELECT, INSERT ON ALL TABLES IN SCHEMA %s TO %s", s, ident(u)),
			fmt.Sprintf("GRANT ALL ON SCHEMA %s TO %s", s, ident(u)),
		)
	}
	return qs
}

// buildSelectQuery reads every row of t in id order.
func buildSelectQuery(t *Table) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = ident(c.Name)
	}
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), tableIdent(t))
	if len(cols) > 0 {
		q += " ORDER BY " + cols[0]
	}
	return q
}
