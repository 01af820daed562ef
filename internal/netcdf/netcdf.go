// Package netcdf reads a cropped variable out of a NetCDF classic file.
package netcdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ctessum/cdf"

	"github.com/hurou927/hydro-catalog/internal/bounds"
	"github.com/hurou927/hydro-catalog/internal/expand"
	"github.com/hurou927/hydro-catalog/internal/ndarray"
)

// timeDims are the dimension names treated as time, in priority order.
var timeDims = []string{"time", "date", "TimeStamp", "datetime"}

// Selection picks the part of a variable to read.
type Selection struct {
	Period string
	Start  *time.Time
	End    *time.Time

	// RunNumber selects the 1-based ensemble member; blank means the first.
	RunNumber string
	// Z selects one layer; nil means the last layer.
	Z *int
	// Box crops x and y; nil means the whole extent. Its z range is ignored.
	Box *bounds.Constraint
}

// dimSel keeps [start, stop) of a dimension, or one index and drops the
// dimension when drop is set.
type dimSel struct {
	start, stop int
	drop        bool
}

// ReadVariable reads variable from path and applies sel. The time values
// of the selected steps are returned when the file has a time coordinate.
// Remaining x/y dimensions are reordered so that y precedes x.
func ReadVariable(path, variable string, sel Selection) (*ndarray.Tensor, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	nc, err := cdf.Open(f)
	if err != nil {
		return nil, nil, fmt.Errorf("opening netcdf %s: %w", path, err)
	}

	dims := nc.Header.Dimensions(variable)
	if dims == nil {
		return nil, nil, fmt.Errorf("netcdf %s has no variable %s", path, variable)
	}
	data, shape, err := readAll(nc, variable, st.Size())
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s from %s: %w", variable, path, err)
	}

	sels := make([]dimSel, len(dims))
	for i := range dims {
		sels[i] = dimSel{start: 0, stop: shape[i]}
	}
	var steps []float64
	var origin *time.Time
	var unit time.Duration

	for i, d := range dims {
		switch {
		case d == "member":
			idx := 0
			if sel.RunNumber != "" {
				if _, err := fmt.Sscan(sel.RunNumber, &idx); err != nil {
					return nil, nil, fmt.Errorf("run_number %q: %w", sel.RunNumber, err)
				}
				idx--
			}
			if idx < 0 || idx >= shape[i] {
				return nil, nil, fmt.Errorf("run_number %s is outside the %d members of %s", sel.RunNumber, shape[i], path)
			}
			sels[i] = dimSel{start: idx, stop: idx + 1, drop: true}
		case d == "z":
			idx := shape[i] - 1
			if sel.Z != nil {
				idx = *sel.Z
			}
			if idx < 0 || idx >= shape[i] {
				return nil, nil, fmt.Errorf("z %d is outside the %d layers of %s", idx, shape[i], path)
			}
			sels[i] = dimSel{start: idx, stop: idx + 1, drop: true}
		case isTimeDim(d) && timeDim(dims) == d:
			origin, unit, steps = timeAxis(nc, d, st.Size())
			if sel.Start == nil {
				continue
			}
			first := *sel.Start
			if origin == nil {
				_, wy := expand.WaterYear(first)
				origin = &wy
			}
			ts, err := timeIndex(sel.Period, *origin, first)
			if err != nil {
				return nil, nil, err
			}
			if sel.Period == "daily" && (ts < 0 || ts >= shape[i]) {
				return nil, nil, fmt.Errorf("the start_date '%s' implies time dimension %d that is outside the time dimension range %d of the netcdf file '%s'",
					first.Format("2006-01-02"), ts, shape[i], path)
			}
			if sel.End == nil {
				sels[i] = dimSel{start: ts, stop: ts + 1, drop: true}
				continue
			}
			te, err := timeIndex(sel.Period, *origin, *sel.End)
			if err != nil {
				return nil, nil, err
			}
			sels[i] = dimSel{start: max(ts, 0), stop: min(te, shape[i])}
		case d == "x" && sel.Box != nil:
			sels[i] = dimSel{start: sel.Box.X.Start, stop: max(sel.Box.X.Stop, sel.Box.X.Start+1)}
		case d == "y" && sel.Box != nil:
			sels[i] = dimSel{start: sel.Box.Y.Start, stop: max(sel.Box.Y.Stop, sel.Box.Y.Start+1)}
		}
	}
	for i, s := range sels {
		if s.start < 0 || s.stop > shape[i] || s.start > s.stop {
			return nil, nil, bounds.Invalid("%s range [%d, %d) is outside 0..%d of %s", dims[i], s.start, s.stop, shape[i], path)
		}
	}

	out, kept := slice(data, shape, dims, sels)
	out = yBeforeX(out, kept)

	var times []string
	if steps != nil && origin != nil {
		for i, d := range dims {
			if d != timeDim(dims) {
				continue
			}
			for _, v := range steps[sels[i].start:sels[i].stop] {
				times = append(times, origin.Add(time.Duration(v*float64(unit))).Format("2006-01-02T15:04:05.000000000"))
			}
		}
	}
	return out, times, nil
}

func isTimeDim(d string) bool {
	for _, t := range timeDims {
		if d == t {
			return true
		}
	}
	return false
}

// timeDim returns the first dimension of dims that holds time.
func timeDim(dims []string) string {
	for _, d := range dims {
		if isTimeDim(d) {
			return d
		}
	}
	return ""
}

// timeAxis decodes a CF "<unit> since <date>" coordinate variable named
// dim. origin is the time of the first step; it is nil when the file has
// no such variable.
func timeAxis(nc *cdf.File, dim string, size int64) (*time.Time, time.Duration, []float64) {
	units, _ := nc.Header.GetAttribute(dim, "units").(string)
	unitName, since, ok := strings.Cut(units, " since ")
	if !ok {
		return nil, 0, nil
	}
	unit, ok := map[string]time.Duration{
		"days": 24 * time.Hour, "hours": time.Hour, "minutes": time.Minute, "seconds": time.Second,
	}[strings.TrimSpace(unitName)]
	if !ok {
		return nil, 0, nil
	}
	ref, err := expand.ParseTime(strings.TrimSpace(since))
	if err != nil {
		return nil, 0, nil
	}
	values, _, err := readAll(nc, dim, size)
	if err != nil || len(values) == 0 {
		return nil, 0, nil
	}
	first := ref.Add(time.Duration(values[0] * float64(unit)))
	steps := make([]float64, len(values))
	for i, v := range values {
		steps[i] = v - values[0]
	}
	return &first, unit, steps
}

func timeIndex(period string, origin, t time.Time) (int, error) {
	switch period {
	case "daily":
		return int(t.Sub(origin).Hours()) / 24, nil
	case "hourly":
		return int(t.Sub(origin).Hours()), nil
	case "monthly":
		return (t.Year()-origin.Year())*12 + int(t.Month()) - int(origin.Month()), nil
	case "weekly":
		return int(t.Sub(origin).Hours()) / (24 * 7), nil
	}
	return 0, fmt.Errorf("cannot select time of a %q period entry", period)
}

// readAll reads every value of v as float64. Record variables use the
// record count implied by the file size.
func readAll(nc *cdf.File, v string, size int64) ([]float64, []int, error) {
	shape := append([]int(nil), nc.Header.Lengths(v)...)
	if nc.Header.IsRecordVariable(v) {
		shape[0] = int(nc.Header.NumRecs(size))
	}
	n := 1
	for _, s := range shape {
		n *= s
	}
	if n == 0 {
		return nil, shape, nil
	}
	var end []int
	if nc.Header.IsRecordVariable(v) {
		end = make([]int, len(shape))
		for i, l := range shape {
			end[i] = l - 1
		}
	}
	raw := nc.Header.ZeroValue(v, n)
	r := nc.Reader(v, nil, end)
	if r == nil {
		return nil, nil, fmt.Errorf("no variable %s", v)
	}
	if _, err := r.Read(raw); err != nil {
		return nil, nil, err
	}
	out := make([]float64, n)
	switch vals := raw.(type) {
	case []float64:
		copy(out, vals)
	case []float32:
		for i, x := range vals {
			out[i] = float64(x)
		}
	case []int32:
		for i, x := range vals {
			out[i] = float64(x)
		}
	case []int16:
		for i, x := range vals {
			out[i] = float64(x)
		}
	case []uint8:
		for i, x := range vals {
			out[i] = float64(x)
		}
	default:
		return nil, nil, fmt.Errorf("variable %s has unsupported type %T", v, raw)
	}
	return out, shape, nil
}

// slice applies sels to a row-major array and returns the result with the
// names of the dimensions it kept.
func slice(data []float64, shape []int, dims []string, sels []dimSel) (*ndarray.Tensor, []string) {
	var outShape []int
	var kept []string
	for i, s := range sels {
		if !s.drop {
			outShape = append(outShape, s.stop-s.start)
			kept = append(kept, dims[i])
		}
	}
	out := ndarray.New(outShape...)
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	n := 0
	var walk func(axis, off int)
	walk = func(axis, off int) {
		if axis == len(shape) {
			out.Data[n] = data[off]
			n++
			return
		}
		for i := sels[axis].start; i < sels[axis].stop; i++ {
			walk(axis+1, off+i*strides[axis])
		}
	}
	if out.Len() > 0 {
		walk(0, 0)
	}
	return out, kept
}

// yBeforeX transposes trailing [x, y] dimensions to [y, x].
func yBeforeX(t *ndarray.Tensor, dims []string) *ndarray.Tensor {
	k := len(dims)
	if k < 2 || dims[k-2] != "x" || dims[k-1] != "y" {
		return t
	}
	nx, ny := t.Shape[k-2], t.Shape[k-1]
	outer := t.Len() / (nx * ny)
	shape := append(append([]int(nil), t.Shape[:k-2]...), ny, nx)
	out := ndarray.New(shape...)
	for o := 0; o < outer; o++ {
		base := o * nx * ny
		for x := 0; x < nx; x++ {
			for y := 0; y < ny; y++ {
				out.Data[base+y*nx+x] = t.Data[base+x*ny+y]
			}
		}
	}
	return out
}

// MatchWildcard resolves a path ending in "*" to the first file in its
// directory whose name starts with the text before the "*". Other paths
// are returned unchanged.
func MatchWildcard(path string) (string, error) {
	if !strings.HasSuffix(path, "*") {
		return path, nil
	}
	dir, prefix := filepath.Split(strings.TrimSuffix(path, "*"))
	entries, err := os.ReadDir(filepath.Clean(dir))
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("no file matches %s", path)
}
