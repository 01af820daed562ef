package resolve

import (
	"sort"
	"strings"

	"github.com/hurou927/hydro-catalog/internal/catalog"
)

// Filter narrows the catalog entries. Empty fields do not narrow.
type Filter struct {
	ID                 string
	Dataset            string
	Variable           string
	TemporalResolution string
	Aggregation        string
	Grid               string
	FileType           string
	SiteType           string
	StructureType      string
	DatasetVersion     string

	// Extra holds any other column to compare by equality.
	Extra map[string]string
}

// requestKeys are options that shape a read but never select an entry.
var requestKeys = map[string]bool{
	"start_time":         true,
	"end_time":           true,
	"grid_bounds":        true,
	"latlng_bounds":      true,
	"grid_point":         true,
	"latlng_point":       true,
	"x":                  true,
	"y":                  true,
	"z":                  true,
	"level":              true,
	"site_id":            true,
	"scenario_id":        true,
	"domain_path":        true,
	"scenario_from_date": true,
	"scenario_to_date":   true,
	"run_number":         true,
	"mask":               true,
}

// IsRequestKey reports whether an option belongs to the read request rather than the filter.
func IsRequestKey(key string) bool {
	return requestKeys[key]
}

// ParseFilter builds a Filter from raw options. Request keys are skipped.
func ParseFilter(options map[string]string) Filter {
	var f Filter
	for key, value := range options {
		value = strings.TrimSpace(value)
		switch key {
		case "id", "data_catalog_entry_id":
			if f.ID == "" || key == "data_catalog_entry_id" {
				f.ID = value
			}
		case "dataset":
			f.Dataset = value
		case "variable":
			f.Variable = value
		case "temporal_resolution":
			f.TemporalResolution = value
		case "period":
			if f.TemporalResolution == "" {
				f.TemporalResolution = value
			}
		case "aggregation":
			f.Aggregation = value
		case "grid":
			f.Grid = value
		case "file_type":
			f.FileType = value
		case "site_type":
			f.SiteType = value
		case "structure_type":
			f.StructureType = value
		case "dataset_version":
			f.DatasetVersion = value
		default:
			if requestKeys[key] || value == "" {
				continue
			}
			if f.Extra == nil {
				f.Extra = make(map[string]string)
			}
			f.Extra[key] = value
		}
	}
	if options["temporal_resolution"] != "" {
		f.TemporalResolution = strings.TrimSpace(options["temporal_resolution"])
	}
	return f
}

// Empty reports whether the filter selects every entry.
func (f Filter) Empty() bool {
	return len(f.columns()) == 0 && f.ID == ""
}

// columns returns the non-empty column comparisons, temporal resolution excluded.
func (f Filter) columns() map[string]string {
	cols := make(map[string]string)
	set := func(k, v string) {
		if v != "" {
			cols[k] = v
		}
	}
	set("dataset", f.Dataset)
	set("variable", f.Variable)
	set("aggregation", f.Aggregation)
	set("grid", f.Grid)
	set("file_type", f.FileType)
	set("site_type", f.SiteType)
	set("structure_type", f.StructureType)
	set("dataset_version", f.DatasetVersion)
	for k, v := range f.Extra {
		set(k, v)
	}
	return cols
}

// Match reports whether an entry row satisfies the filter.
func (f Filter) Match(row *catalog.Row) bool {
	if f.ID != "" && row.ID() != f.ID {
		return false
	}
	if f.TemporalResolution != "" && !catalog.Matches(row, resolutionColumn(row), f.TemporalResolution) {
		return false
	}
	return catalog.MatchesAll(row, f.columns())
}

// Options returns the filter as column options, the inverse of ParseFilter.
func (f Filter) Options() map[string]string {
	out := f.columns()
	if f.ID != "" {
		out["id"] = f.ID
	}
	if f.TemporalResolution != "" {
		out["temporal_resolution"] = f.TemporalResolution
	}
	return out
}

// String renders the filter as sorted key=value pairs.
func (f Filter) String() string {
	opts := f.Options()
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + opts[k]
	}
	return strings.Join(parts, " ")
}

// resolutionColumn picks the column holding the temporal resolution of an entry.
func resolutionColumn(row *catalog.Row) string {
	if _, ok := row.Get("temporal_resolution"); ok {
		return "temporal_resolution"
	}
	return "period"
}

// TemporalResolution returns the entry's temporal resolution.
func TemporalResolution(row *catalog.Row) string {
	return row.String(resolutionColumn(row))
}
