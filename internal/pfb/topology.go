package pfb

import "fmt"

// Axis selects x, y or z.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string { return [...]string{"x", "y", "z"}[a] }

// Topology describes how a grid of NX*NY*NZ cells is tiled into P*Q*R
// subgrids whose representative size is SGX*SGY*SGZ.
//
// When N is not a multiple of P the first N%P subgrids along that axis are
// SG cells wide and the rest are SG-1.
type Topology struct {
	NX, NY, NZ    int
	SGX, SGY, SGZ int
	P, Q, R       int
}

// NewTopology derives P, Q and R from the grid shape and the first
// subgrid's shape.
func NewTopology(nx, ny, nz, sgx, sgy, sgz int) (Topology, error) {
	t := Topology{NX: nx, NY: ny, NZ: nz, SGX: sgx, SGY: sgy, SGZ: sgz}
	for _, a := range []Axis{AxisX, AxisY, AxisZ} {
		n, sg := t.extent(a), t.sg(a)
		if sg <= 0 || sg > n {
			return t, fmt.Errorf("subgrid %s size %d does not fit grid size %d", a, sg, n)
		}
	}
	t.P = ceilDiv(nx, sgx)
	t.Q = ceilDiv(ny, sgy)
	t.R = ceilDiv(nz, sgz)
	for _, a := range []Axis{AxisX, AxisY, AxisZ} {
		if n, parts := t.extent(a), t.parts(a); t.Origin(a, parts-1)+t.Size(a, parts-1) != n {
			return t, fmt.Errorf("subgrid %s size %d cannot tile grid size %d", a, t.sg(a), n)
		}
	}
	return t, nil
}

// Partition builds the topology of a grid split into p*q*r subgrids the
// way ParFlow distributes cells: N/P cells each, one more for the first N%P.
func Partition(nx, ny, nz, p, q, r int) (Topology, error) {
	for _, d := range [][2]int{{nx, p}, {ny, q}, {nz, r}} {
		n, parts := d[0], d[1]
		if parts <= 0 || parts > n {
			return Topology{}, fmt.Errorf("cannot split %d cells into %d subgrids", n, parts)
		}
		if ceilDiv(n, ceilDiv(n, parts)) != parts {
			return Topology{}, fmt.Errorf("%d cells in %d subgrids cannot be recovered from the subgrid size", n, parts)
		}
	}
	return NewTopology(nx, ny, nz, ceilDiv(nx, p), ceilDiv(ny, q), ceilDiv(nz, r))
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func (t Topology) extent(a Axis) int {
	switch a {
	case AxisX:
		return t.NX
	case AxisY:
		return t.NY
	}
	return t.NZ
}

func (t Topology) sg(a Axis) int {
	switch a {
	case AxisX:
		return t.SGX
	case AxisY:
		return t.SGY
	}
	return t.SGZ
}

func (t Topology) parts(a Axis) int {
	switch a {
	case AxisX:
		return t.P
	case AxisY:
		return t.Q
	}
	return t.R
}

// remainder is the count of full-size subgrids along a, or 0 when all are.
func (t Topology) remainder(a Axis) int {
	return t.extent(a) % t.parts(a)
}

// Size returns the cell count of subgrid i along a.
func (t Topology) Size(a Axis, i int) int {
	rem := t.remainder(a)
	if rem == 0 || i < rem {
		return t.sg(a)
	}
	return t.sg(a) - 1
}

// Origin returns the first cell of subgrid i along a.
func (t Topology) Origin(a Axis, i int) int {
	rem, sg := t.remainder(a), t.sg(a)
	if rem == 0 || i < rem {
		return i * sg
	}
	return rem*sg + (i-rem)*(sg-1)
}

// Locate returns the subgrid along a that contains cell v.
func (t Topology) Locate(a Axis, v int) int {
	rem, sg := t.remainder(a), t.sg(a)
	if rem == 0 || v < rem*sg {
		return v / sg
	}
	return rem + (v-rem*sg)/(sg-1)
}

// Index returns the position of subgrid (rx, ry, rz) in file order.
func (t Topology) Index(rx, ry, rz int) int {
	return (rz*t.Q+ry)*t.P + rx
}

// Offset returns the byte offset of the header of subgrid (rx, ry, rz).
// Every subgrid before it contributes a header and its cells; those cells
// are the full layers below, the full rows before it in its layer, and the
// subgrids before it in its row.
func (t Topology) Offset(rx, ry, rz int) int64 {
	ox, oy, oz := t.Origin(AxisX, rx), t.Origin(AxisY, ry), t.Origin(AxisZ, rz)
	ny, nz := t.Size(AxisY, ry), t.Size(AxisZ, rz)
	cells := int64(t.NX)*int64(t.NY)*int64(oz) +
		int64(t.NX)*int64(oy)*int64(nz) +
		int64(ox)*int64(ny)*int64(nz)
	return headerSize + subgridHeader*int64(t.Index(rx, ry, rz)) + cellSize*cells
}

// subgridAt returns the expected header of subgrid (rx, ry, rz).
func (t Topology) subgridAt(rx, ry, rz int) subgrid {
	return subgrid{
		X: t.Origin(AxisX, rx), Y: t.Origin(AxisY, ry), Z: t.Origin(AxisZ, rz),
		NX: t.Size(AxisX, rx), NY: t.Size(AxisY, ry), NZ: t.Size(AxisZ, rz),
	}
}

// FileSize returns the byte size of a complete file with this topology.
func (t Topology) FileSize() int64 {
	return headerSize + subgridHeader*int64(t.P*t.Q*t.R) + cellSize*int64(t.NX)*int64(t.NY)*int64(t.NZ)
}
