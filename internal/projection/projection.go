// Package projection converts between geographic coordinates and grid cells.
package projection

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"

	"github.com/hurou927/hydro-catalog/internal/catalog"
)

// longLatDef returns a lat/lon proj4 definition on the ellipsoid with the
// given semi-axes. The axes are written in plain decimal notation since proj4
// splits parameters on '+'.
func longLatDef(a, b float64) string {
	return "+proj=longlat +a=" + strconv.FormatFloat(a, 'f', -1, 64) +
		" +b=" + strconv.FormatFloat(b, 'f', -1, 64)
}

// Grid maps lat/lon to the cells of one catalog grid.
type Grid struct {
	Name       string
	Shape      []int // z, y, x
	Resolution float64
	OriginX    float64
	OriginY    float64

	forward proj.Transformer
	inverse proj.Transformer
}

// New builds the projection of a grid row: crs, origin, resolution_meters and shape.
func New(row *catalog.Row) (*Grid, error) {
	crs := strings.TrimSpace(row.String("crs"))
	if crs == "" {
		return nil, fmt.Errorf("grid '%s' does not have a projection", row.ID())
	}
	gridSR, err := proj.Parse(crs)
	if err != nil {
		return nil, fmt.Errorf("parsing crs of grid %s: %w", row.ID(), err)
	}
	llSR, err := proj.Parse(longLatDef(gridSR.A, gridSR.B))
	if err != nil {
		return nil, fmt.Errorf("building lat/lon reference: %w", err)
	}
	fwd, err := llSR.NewTransform(gridSR)
	if err != nil {
		return nil, fmt.Errorf("creating transform: %w", err)
	}
	inv, err := gridSR.NewTransform(llSR)
	if err != nil {
		return nil, fmt.Errorf("creating inverse transform: %w", err)
	}

	g := &Grid{Name: row.ID(), forward: fwd, inverse: inv}

	res, err := floatField(row, "resolution_meters")
	if err != nil {
		return nil, err
	}
	if len(res) == 0 || res[0] <= 0 {
		return nil, fmt.Errorf("grid %s: resolution_meters must be positive", row.ID())
	}
	g.Resolution = res[0]

	if origin, err := floatField(row, "origin"); err != nil {
		return nil, err
	} else if len(origin) == 2 {
		g.OriginX, g.OriginY = origin[0], origin[1]
	}

	if v, ok := row.Get("shape"); ok && !v.Empty() {
		if g.Shape, err = v.Ints(); err != nil {
			return nil, fmt.Errorf("grid %s shape: %w", row.ID(), err)
		}
	}
	return g, nil
}

func floatField(row *catalog.Row, col string) ([]float64, error) {
	v, ok := row.Get(col)
	if !ok || v.Empty() {
		return nil, nil
	}
	f, err := v.Floats()
	if err != nil {
		return nil, fmt.Errorf("grid %s %s: %w", row.ID(), col, err)
	}
	return f, nil
}

// ToMeters converts lat/lon pairs to projected meters from the grid origin.
func (g *Grid) ToMeters(latlon ...float64) ([]float64, error) {
	if err := checkPairs(latlon); err != nil {
		return nil, err
	}
	out := make([]float64, len(latlon))
	for i := 0; i < len(latlon); i += 2 {
		x, y, err := g.forward(latlon[i+1], latlon[i])
		if err != nil {
			return nil, fmt.Errorf("projecting %v,%v: %w", latlon[i], latlon[i+1], err)
		}
		out[i], out[i+1] = x-g.OriginX, y-g.OriginY
	}
	return out, nil
}

// ToXY converts lat/lon pairs to fractional grid coordinates. Every point
// must fall inside the grid shape.
func (g *Grid) ToXY(latlon ...float64) ([]float64, error) {
	meters, err := g.ToMeters(latlon...)
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(meters); i += 2 {
		x, y := meters[i]/g.Resolution, meters[i+1]/g.Resolution
		if len(g.Shape) == 3 {
			bx, by := float64(g.Shape[2]), float64(g.Shape[1])
			rx, ry := math.Round(x), math.Round(y)
			if rx < 0 || rx > bx || ry < 0 || ry > by {
				return nil, &OutOfGridError{X: x, Y: y, Width: g.Shape[2], Height: g.Shape[1]}
			}
		}
		meters[i], meters[i+1] = x, y
	}
	return meters, nil
}

// ToIJ is ToXY rounded to whole cells.
func (g *Grid) ToIJ(latlon ...float64) ([]int, error) {
	xy, err := g.ToXY(latlon...)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(xy))
	for i, v := range xy {
		out[i] = int(math.Round(v))
	}
	return out, nil
}

// ToLatLon converts grid coordinate pairs to lat/lon pairs.
func (g *Grid) ToLatLon(xy ...float64) ([]float64, error) {
	if err := checkPairs(xy); err != nil {
		return nil, err
	}
	out := make([]float64, len(xy))
	for i := 0; i < len(xy); i += 2 {
		mx := math.Trunc(xy[i]*g.Resolution) + g.OriginX
		my := math.Trunc(xy[i+1]*g.Resolution) + g.OriginY
		lon, lat, err := g.inverse(mx, my)
		if err != nil {
			return nil, fmt.Errorf("unprojecting %v,%v: %w", xy[i], xy[i+1], err)
		}
		out[i], out[i+1] = lat, lon
	}
	return out, nil
}

// OutOfGridError reports a lat/lon point outside the grid.
type OutOfGridError struct {
	X, Y          float64
	Width, Height int
}

func (e *OutOfGridError) Error() string {
	return fmt.Sprintf("the lat/lon point maps to %d,%d which is outside of grid bounds %d, %d",
		int(e.X), int(e.Y), e.Width, e.Height)
}

func checkPairs(v []float64) error {
	if len(v) == 0 {
		return fmt.Errorf("at least two values must be provided")
	}
	if len(v)%2 == 1 {
		return fmt.Errorf("number of values must be even, got %d", len(v))
	}
	return nil
}
