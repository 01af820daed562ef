// Package resolve selects catalog entries matching a filter.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hurou927/hydro-catalog/internal/catalog"
)

// ErrNoEntryFound is returned by MustOne when no entry matches.
var ErrNoEntryFound = errors.New("no data catalog entry found for filter")

// formatRank orders file types when several entries match. Lower wins.
var formatRank = map[string]int{
	"pfb":    0,
	"tif":    1,
	"tiff":   1,
	"netcdf": 2,
}

const unranked = 1000

// discriminators are the fields reported when two entries tie.
var discriminators = []string{"dataset", "temporal_resolution", "aggregation", "grid", "variable", "site_type"}

// AmbiguousFilterError reports two entries the filter cannot tell apart.
type AmbiguousFilterError struct {
	First  *catalog.Row
	Second *catalog.Row
	Diffs  []FieldDiff
}

// FieldDiff is one discriminating field with differing values.
type FieldDiff struct {
	Field  string
	First  string
	Second string
}

func newAmbiguous(a, b *catalog.Row) *AmbiguousFilterError {
	e := &AmbiguousFilterError{First: a, Second: b}
	for _, field := range discriminators {
		v1, v2 := fieldValue(a, field), fieldValue(b, field)
		if v1 != "" && v2 != "" && v1 != v2 {
			e.Diffs = append(e.Diffs, FieldDiff{Field: field, First: v1, Second: v2})
		}
	}
	return e
}

func fieldValue(row *catalog.Row, field string) string {
	if field == "temporal_resolution" {
		return TemporalResolution(row)
	}
	return row.String(field)
}

func (e *AmbiguousFilterError) Error() string {
	var diffs []string
	for _, d := range e.Diffs {
		diffs = append(diffs, fmt.Sprintf("%s = '%s' or '%s'", d.Field, d.First, d.Second))
	}
	if len(diffs) == 0 {
		diffs = append(diffs, fmt.Sprintf("id = '%s' or '%s'", e.First.ID(), e.Second.ID()))
	}
	return fmt.Sprintf("Ambiguous filter. Could be %s.", strings.Join(diffs, ", "))
}

// Resolver answers entry queries against a catalog handle.
type Resolver struct {
	Handle *catalog.Handle
}

// New creates a Resolver.
func New(h *catalog.Handle) *Resolver {
	return &Resolver{Handle: h}
}

func (r *Resolver) fact(ctx context.Context) (*catalog.Table, error) {
	m, err := r.Handle.Model(ctx)
	if err != nil {
		return nil, err
	}
	fact := m.Fact()
	if fact == nil {
		return nil, fmt.Errorf("%w: %s", catalog.ErrNoSuchTable, catalog.FactTable)
	}
	return fact, nil
}

// Many returns every matching entry in table row order.
func (r *Resolver) Many(ctx context.Context, f Filter) ([]*catalog.Row, error) {
	fact, err := r.fact(ctx)
	if err != nil {
		return nil, err
	}
	if f.ID != "" {
		row := fact.Row(f.ID)
		if row == nil || !f.Match(row) {
			return nil, nil
		}
		return []*catalog.Row{row}, nil
	}

	var out []*catalog.Row
	for _, row := range fact.Rows() {
		if f.Match(row) {
			out = append(out, row)
		}
	}
	return out, nil
}

// One returns the single preferred entry, or nil when nothing matches.
func (r *Resolver) One(ctx context.Context, f Filter) (*catalog.Row, error) {
	rows, err := r.Many(ctx, f)
	if err != nil {
		return nil, err
	}
	return Preferred(rows)
}

// MustOne is One that treats no match as ErrNoEntryFound.
func (r *Resolver) MustOne(ctx context.Context, f Filter) (*catalog.Row, error) {
	row, err := r.One(ctx, f)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEntryFound, f)
	}
	return row, nil
}

// Preferred picks one entry by file type rank: pfb, then tif, then netcdf.
// Two entries at the same rank, or two unranked entries before any ranked
// one, are ambiguous.
func Preferred(rows []*catalog.Row) (*catalog.Row, error) {
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0], nil
	}

	var best *catalog.Row
	bestRank := unranked
	for _, row := range rows {
		rank, ranked := formatRank[row.String("file_type")]
		switch {
		case ranked && rank < bestRank:
			best, bestRank = row, rank
		case ranked && rank == bestRank:
			return nil, newAmbiguous(best, row)
		case !ranked && best == nil:
			best = row
		case !ranked && bestRank == unranked:
			return nil, newAmbiguous(best, row)
		}
	}
	return best, nil
}

// Datasets returns the sorted distinct datasets of the matching entries.
func (r *Resolver) Datasets(ctx context.Context, f Filter) ([]string, error) {
	return r.distinct(ctx, f, "dataset")
}

// Variables returns the sorted distinct variables of the matching entries.
func (r *Resolver) Variables(ctx context.Context, f Filter) ([]string, error) {
	return r.distinct(ctx, f, "variable")
}

func (r *Resolver) distinct(ctx context.Context, f Filter, col string) ([]string, error) {
	rows, err := r.Many(ctx, f)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, row := range rows {
		v := row.String(col)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}
