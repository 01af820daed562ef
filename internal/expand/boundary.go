package expand

import (
	"fmt"
	"strings"
	"time"

	"github.com/hurou927/hydro-catalog/internal/bounds"
	"github.com/hurou927/hydro-catalog/internal/catalog"
	"github.com/hurou927/hydro-catalog/internal/projection"
)

type (
	Constraint         = bounds.Constraint
	Range              = bounds.Range
	InvalidBoundsError = bounds.InvalidBoundsError
)

// Boundary builds the spatial constraint of a request against grid.
// At most one of a point (x/y, grid_point or latlng_point), grid_bounds
// or latlng_bounds may be given. Lat/lon inputs are projected through the
// grid's crs. A nil constraint means the full grid.
func Boundary(grid *catalog.Row, req Request) (*Constraint, error) {
	point := req.X != nil || req.Y != nil || req.GridPoint != nil || req.LatLngPoint != nil
	given := 0
	for _, b := range []bool{point, req.GridBounds != nil, req.LatLngBounds != nil} {
		if b {
			given++
		}
	}
	if req.GridBounds != nil && req.LatLngBounds != nil {
		return nil, bounds.Invalid("cannot specify both grid_bounds and latlng_bounds")
	}
	if given > 1 {
		return nil, bounds.Invalid("only one of a point, grid_bounds or latlng_bounds may be specified")
	}

	switch {
	case point:
		return pointConstraint(grid, req)
	case req.GridBounds != nil:
		return boxConstraint(req.GridBounds)
	case req.LatLngBounds != nil:
		if len(req.LatLngBounds) != 4 {
			return nil, bounds.Invalid("latlng_bounds must be [lat, lon, lat, lon], got %d values", len(req.LatLngBounds))
		}
		ij, err := project(grid, req.LatLngBounds...)
		if err != nil {
			return nil, err
		}
		return boxConstraint(ij)
	}
	return nil, nil
}

func pointConstraint(grid *catalog.Row, req Request) (*Constraint, error) {
	var x, y int
	switch {
	case req.X != nil || req.Y != nil:
		if req.GridPoint != nil || req.LatLngPoint != nil {
			return nil, bounds.Invalid("only one of x/y, grid_point or latlng_point may be specified")
		}
		if req.X == nil || req.Y == nil {
			return nil, bounds.Invalid("if x point is specified then y must be specified")
		}
		x, y = *req.X, *req.Y
	case req.GridPoint != nil:
		if req.LatLngPoint != nil {
			return nil, bounds.Invalid("only one of grid_point or latlng_point may be specified")
		}
		if len(req.GridPoint) != 2 {
			return nil, bounds.Invalid("grid_point must be [x, y], got %d values", len(req.GridPoint))
		}
		x, y = req.GridPoint[0], req.GridPoint[1]
	default:
		if len(req.LatLngPoint) != 2 {
			return nil, bounds.Invalid("latlng_point must be [lat, lon], got %d values", len(req.LatLngPoint))
		}
		ij, err := project(grid, req.LatLngPoint...)
		if err != nil {
			return nil, err
		}
		x, y = ij[0], ij[1]
	}

	c := &Constraint{X: bounds.Point(x), Y: bounds.Point(y)}
	if req.Z != nil {
		c.Z = Range{Start: *req.Z, Stop: *req.Z + 1}
	}
	return c, nil
}

func boxConstraint(b []int) (*Constraint, error) {
	if len(b) != 4 {
		return nil, bounds.Invalid("grid_bounds must be [left, bottom, right, top], got %d values", len(b))
	}
	if b[2] < b[0] || b[3] < b[1] {
		return nil, bounds.Invalid("grid_bounds %v: right/top must not be less than left/bottom", b)
	}
	return &Constraint{
		X: Range{Start: b[0], Stop: b[2]},
		Y: Range{Start: b[1], Stop: b[3]},
	}, nil
}

func project(grid *catalog.Row, latlon ...float64) ([]int, error) {
	if grid == nil {
		return nil, bounds.Invalid("lat/lon filters need a grid")
	}
	p, err := projection.New(grid)
	if err != nil {
		return nil, bounds.Invalid("%v", err)
	}
	ij, err := p.ToIJ(latlon...)
	if err != nil {
		return nil, bounds.Invalid("%v", err)
	}
	return ij, nil
}

// TimeAsZ reports whether the z axis of the entry's files holds time steps:
// the variable has no depth axis, a start time is given and the period is
// daily, hourly, monthly or weekly.
func TimeAsZ(entry, variable *catalog.Row, req Request) bool {
	if variable != nil && strings.EqualFold(variable.String("has_z"), "true") {
		return false
	}
	if req.Start == nil {
		return false
	}
	switch entry.String("period") {
	case "daily", "hourly", "monthly", "weekly":
		return true
	}
	return false
}

// AddTimeAxis narrows z to the time steps of the request when the files
// store time along z. A nil constraint is first widened to the full grid
// shape. The input constraint is not modified.
func AddTimeAxis(c *Constraint, entry, variable, grid *catalog.Row, req Request) (*Constraint, error) {
	if !TimeAsZ(entry, variable, req) {
		return c, nil
	}
	out, err := orFull(c, entry, grid)
	if err != nil {
		return nil, err
	}

	start := *req.Start
	_, wyStart := WaterYear(start)
	switch entry.String("period") {
	case "daily":
		day := int(start.Sub(wyStart).Hours()) / 24
		stop := day + 1
		if req.End != nil {
			stop = day + int(req.End.Sub(start).Hours())/24
		}
		out.Z = Range{Start: day, Stop: stop}
	case "monthly":
		first := monthsSince(wyStart, start)
		stop := first + 1
		if req.End != nil {
			stop = monthsSince(wyStart, *req.End)
		}
		out.Z = Range{Start: first, Stop: stop}
	case "weekly":
		first := weeksSince(wyStart, start)
		stop := first + 1
		if req.End != nil {
			stop = weeksSince(wyStart, *req.End)
		}
		out.Z = Range{Start: first, Stop: stop}
	case "hourly":
		hour := start.Hour()
		stop := hour + 1
		if req.End != nil {
			stop = min(hour+int(req.End.Sub(start).Hours()), 24)
		}
		out.Z = Range{Start: hour, Stop: stop}
	}
	return out, nil
}

// orFull copies c, or builds the full grid constraint of the entry's grid.
func orFull(c *Constraint, entry, grid *catalog.Row) (*Constraint, error) {
	if c != nil {
		cp := *c
		return &cp, nil
	}
	if grid == nil {
		return nil, fmt.Errorf("no such grid %s available", entry.String("grid"))
	}
	v, _ := grid.Get("shape")
	shape, err := v.Ints()
	if err != nil || len(shape) != 3 {
		return nil, fmt.Errorf("grid %s has no [z, y, x] shape", grid.ID())
	}
	return bounds.Full(shape[2], shape[1]), nil
}

func monthsSince(from, t time.Time) int {
	return (t.Year()-from.Year())*12 + int(t.Month()) - int(from.Month())
}

func weeksSince(from, t time.Time) int {
	return int(t.Sub(from).Hours()) / (24 * 7)
}

// cpfbLayers maps a C.pfb dataset_var to its z layer.
var cpfbLayers = map[string]int{
	"eflx_lh_tot":    0,
	"eflx_lwrad_out": 1,
	"eflx_sh_tot":    2,
	"eflx_soil_grnd": 3,
	"qflx_evap_tot":  4,
	"qflx_evap_grnd": 5,
	"qflx_evap_soil": 6,
	"qflx_evap_veg":  7,
	"qflx_tran_veg":  8,
	"qflx_infl":      9,
	"swe_out":        10,
	"t_grnd":         11,
	"qflx_qirr":      12,
	"tsoil":          13,
}

// CPFBLayer returns the z layer holding the entry's dataset_var in a C.pfb file.
func CPFBLayer(entry *catalog.Row) (int, error) {
	z, ok := cpfbLayers[entry.String("dataset_var")]
	if !ok {
		return 0, fmt.Errorf("Unknown dataset_var for C.pfb entry %s.", entry.ID())
	}
	return z, nil
}

// CPFBConstraint builds the read constraint of a C.pfb entry: the spatial
// constraint or full grid, the time axis, then the single layer of the
// entry's dataset_var.
func CPFBConstraint(c *Constraint, entry, variable, grid *catalog.Row, req Request) (*Constraint, error) {
	layer, err := CPFBLayer(entry)
	if err != nil {
		return nil, err
	}
	out, err := orFull(c, entry, grid)
	if err != nil {
		return nil, err
	}
	if out, err = AddTimeAxis(out, entry, variable, grid, req); err != nil {
		return nil, err
	}
	out.Z = Range{Start: layer, Stop: layer + 1}
	return out, nil
}

// TimeRangeError reports a start time outside the dataset's date range.
type TimeRangeError struct {
	Start, From, To string
}

func (e *TimeRangeError) Error() string {
	return fmt.Sprintf("The start_time '%s' is not within the available date range between '%s' and '%s'",
		e.Start, e.From, e.To)
}

// VerifyTimeInRange checks the request start against dataset_start_date and
// dataset_end_date of the entry. Nothing is checked unless all three parse.
func VerifyTimeInRange(entry *catalog.Row, req Request) error {
	if req.Start == nil {
		return nil
	}
	from, to := entry.String("dataset_start_date"), entry.String("dataset_end_date")
	fromT, err1 := ParseTime(from)
	toT, err2 := ParseTime(to)
	if err1 != nil || err2 != nil {
		return nil
	}
	if req.Start.Before(fromT) || req.Start.After(toT) {
		return &TimeRangeError{Start: formatTime(*req.Start), From: from, To: to}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}
