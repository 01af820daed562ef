// Package expand turns a catalog entry and request options into file paths
// and a crop constraint.
package expand

import (
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

// Request holds the read options that are not entry filters.
type Request struct {
	Start *time.Time
	End   *time.Time

	GridBounds   []int     // left, bottom, right, top
	LatLngBounds []float64 // lat/lon pairs
	GridPoint    []int     // x, y
	LatLngPoint  []float64 // lat, lon

	X, Y, Z *int

	SiteID           string
	ScenarioID       string
	DomainPath       string
	ScenarioFromDate string
	ScenarioToDate   string
	RunNumber        string
	Level            string
}

// timeLayouts are tried in order when parsing request times.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01-02-2006",
	"01/02/2006, 15:04:05",
	"01/02/2006 15:04:05",
	"2006-01-02T15:04:05.000000000",
	"01/02/2006",
	"01/02/06",
	"2006-1-2",
	"1/2/2006",
	"2006-01-02T15:04:05",
}

// ParseTime parses a request time in any accepted layout.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// ParseRequest reads the request options out of raw key/value options.
// Unknown keys are left for the entry filter.
func ParseRequest(options map[string]string) (Request, error) {
	var r Request
	var err error

	if v := options["start_time"]; v != "" {
		t, err := ParseTime(v)
		if err != nil {
			return r, fmt.Errorf("start_time: %w", err)
		}
		r.Start = &t
	}
	if v := options["end_time"]; v != "" {
		t, err := ParseTime(v)
		if err != nil {
			return r, fmt.Errorf("end_time: %w", err)
		}
		r.End = &t
	}

	if r.GridBounds, err = parseInts(options["grid_bounds"]); err != nil {
		return r, fmt.Errorf("grid_bounds: %w", err)
	}
	if r.LatLngBounds, err = parseFloats(options["latlng_bounds"]); err != nil {
		return r, fmt.Errorf("latlng_bounds: %w", err)
	}
	if r.GridPoint, err = parseInts(options["grid_point"]); err != nil {
		return r, fmt.Errorf("grid_point: %w", err)
	}
	if r.LatLngPoint, err = parseFloats(options["latlng_point"]); err != nil {
		return r, fmt.Errorf("latlng_point: %w", err)
	}

	for key, dst := range map[string]**int{"x": &r.X, "y": &r.Y, "z": &r.Z} {
		v := strings.TrimSpace(options[key])
		if v == "" {
			continue
		}
		n, err := cast.ToIntE(v)
		if err != nil {
			return r, fmt.Errorf("%s: %w", key, err)
		}
		*dst = &n
	}

	r.SiteID = options["site_id"]
	r.ScenarioID = options["scenario_id"]
	r.DomainPath = options["domain_path"]
	r.ScenarioFromDate = options["scenario_from_date"]
	r.ScenarioToDate = options["scenario_to_date"]
	r.RunNumber = options["run_number"]
	r.Level = options["level"]
	return r, nil
}

// parseList decodes "[a, b, ...]" or "a,b,..." into raw items.
func parseList(s string) ([]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "[") {
		s = "[" + s + "]"
	}
	var items []any
	if err := json.Unmarshal([]byte(strings.ReplaceAll(s, "'", `"`)), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func parseFloats(s string) ([]float64, error) {
	items, err := parseList(s)
	if err != nil || items == nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, item := range items {
		if out[i], err = cast.ToFloat64E(item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	floats, err := parseFloats(s)
	if err != nil || floats == nil {
		return nil, err
	}
	out := make([]int, len(floats))
	for i, f := range floats {
		out[i] = int(f)
	}
	return out, nil
}
