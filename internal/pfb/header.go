// Package pfb reads and writes ParFlow binary grid files.
//
// A file is a 64 byte header followed by P*Q*R subgrid blocks in x, then y,
// then z order. Each block is a 36 byte header of nine big-endian int32
// values (origin, shape, reserved) and its cells as big-endian float64 in
// z, then y, then x order.
package pfb

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	headerSize    = 64
	subgridHeader = 36
	cellSize      = 8
)

// Header is the global file header plus the topology derived from the
// first subgrid.
type Header struct {
	X, Y, Z    float64
	NX, NY, NZ int
	DX, DY, DZ float64

	NumSubgrids int
	Topology    Topology
}

// HeaderError reports a malformed global or first-subgrid header.
type HeaderError struct {
	Path   string
	Reason string
}

func (e *HeaderError) Error() string {
	if e.Path == "" {
		return "pfb header: " + e.Reason
	}
	return fmt.Sprintf("pfb header of %s: %s", e.Path, e.Reason)
}

// ReadHeader parses the global header and the first subgrid header.
func ReadHeader(r io.ReaderAt) (Header, error) {
	buf := make([]byte, headerSize+subgridHeader)
	if n, err := r.ReadAt(buf, 0); n < len(buf) {
		return Header{}, &HeaderError{Reason: fmt.Sprintf("short header: read %d of %d bytes: %v", n, len(buf), err)}
	}
	return parseHeader(buf)
}

func parseHeader(buf []byte) (Header, error) {
	f64 := func(off int) float64 { return math.Float64frombits(binary.BigEndian.Uint64(buf[off:])) }
	i32 := func(off int) int { return int(int32(binary.BigEndian.Uint32(buf[off:]))) }

	h := Header{
		X: f64(0), Y: f64(8), Z: f64(16),
		NX: i32(24), NY: i32(28), NZ: i32(32),
		DX: f64(36), DY: f64(44), DZ: f64(52),
		NumSubgrids: i32(60),
	}
	if h.NX <= 0 || h.NY <= 0 || h.NZ <= 0 {
		return h, &HeaderError{Reason: fmt.Sprintf("invalid grid shape %dx%dx%d", h.NX, h.NY, h.NZ)}
	}
	sg := parseSubgridHeader(buf[headerSize:])
	if sg.X != 0 || sg.Y != 0 || sg.Z != 0 {
		return h, &HeaderError{Reason: fmt.Sprintf("first subgrid starts at %d,%d,%d", sg.X, sg.Y, sg.Z)}
	}
	topo, err := NewTopology(h.NX, h.NY, h.NZ, sg.NX, sg.NY, sg.NZ)
	if err != nil {
		return h, &HeaderError{Reason: err.Error()}
	}
	if n := topo.P * topo.Q * topo.R; h.NumSubgrids != n {
		return h, &HeaderError{Reason: fmt.Sprintf("header declares %d subgrids, topology implies %d", h.NumSubgrids, n)}
	}
	h.Topology = topo
	return h, nil
}

// subgrid is one decoded subgrid header.
type subgrid struct {
	X, Y, Z    int
	NX, NY, NZ int
}

func parseSubgridHeader(b []byte) subgrid {
	i32 := func(off int) int { return int(int32(binary.BigEndian.Uint32(b[off:]))) }
	return subgrid{X: i32(0), Y: i32(4), Z: i32(8), NX: i32(12), NY: i32(16), NZ: i32(20)}
}

func (s subgrid) cells() int { return s.NX * s.NY * s.NZ }
