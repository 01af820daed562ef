// Package bounds describes the x/y/z crop window applied to gridded reads.
package bounds

import "fmt"

// Range is a half-open interval [Start, Stop) of cell indices.
type Range struct {
	Start int `json:"start"`
	Stop  int `json:"stop"`
}

// Point returns the single cell range at i, written with Stop == Start.
func Point(i int) Range { return Range{Start: i, Stop: i} }

// Constraint selects a box of cells. On x and y a range with Stop == Start
// selects one cell. On z a range of size 0 selects the full extent.
type Constraint struct {
	X Range `json:"x"`
	Y Range `json:"y"`
	Z Range `json:"z"`
}

// Full returns the constraint covering an nx by ny grid with every z layer.
func Full(nx, ny int) *Constraint {
	return &Constraint{X: Range{0, nx}, Y: Range{0, ny}}
}

// Window is a resolved constraint: start and count on each axis.
type Window struct {
	X0, NX int
	Y0, NY int
	Z0, NZ int
}

// Len returns the number of cells in the window.
func (w Window) Len() int { return w.NX * w.NY * w.NZ }

// Resolve applies the constraint to a grid of nx by ny by nz cells.
// A nil constraint selects the whole grid.
func (c *Constraint) Resolve(nx, ny, nz int) (Window, error) {
	if c == nil {
		return Window{NX: nx, NY: ny, NZ: nz}, nil
	}
	w := Window{
		X0: c.X.Start, NX: c.X.Stop - c.X.Start,
		Y0: c.Y.Start, NY: c.Y.Stop - c.Y.Start,
		Z0: c.Z.Start, NZ: c.Z.Stop - c.Z.Start,
	}
	if w.NX == 0 {
		w.NX = 1
	}
	if w.NY == 0 {
		w.NY = 1
	}
	if w.NZ == 0 {
		w.Z0, w.NZ = 0, nz
	}
	if err := check("x", w.X0, w.NX, nx); err != nil {
		return Window{}, err
	}
	if err := check("y", w.Y0, w.NY, ny); err != nil {
		return Window{}, err
	}
	if err := check("z", w.Z0, w.NZ, nz); err != nil {
		return Window{}, err
	}
	return w, nil
}

func check(axis string, start, n, size int) error {
	if start < 0 || n < 0 || start+n > size {
		return &InvalidBoundsError{Reason: fmt.Sprintf("%s range [%d, %d) is outside 0..%d", axis, start, start+n, size)}
	}
	return nil
}

// InvalidBoundsError reports conflicting, malformed or out of range spatial filters.
type InvalidBoundsError struct {
	Reason string
}

func (e *InvalidBoundsError) Error() string { return e.Reason }

// Invalid returns an InvalidBoundsError with a formatted reason.
func Invalid(format string, args ...any) error {
	return &InvalidBoundsError{Reason: fmt.Sprintf(format, args...)}
}

func (c *Constraint) String() string {
	if c == nil {
		return "full grid"
	}
	return fmt.Sprintf("x=[%d,%d) y=[%d,%d) z=[%d,%d)", c.X.Start, c.X.Stop, c.Y.Start, c.Y.Stop, c.Z.Start, c.Z.Stop)
}
