package pfb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/edsrzf/mmap-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hurou927/hydro-catalog/internal/bounds"
	"github.com/hurou927/hydro-catalog/internal/ndarray"
)

// DefaultMaxElements caps the number of float64 cells one read may hold.
const DefaultMaxElements int64 = 2_000_000_000

// Reader reads cropped windows out of sequences of files that share one
// topology.
type Reader struct {
	// MaxElements caps the output size and the raw cells in flight.
	// Zero means DefaultMaxElements.
	MaxElements int64
	// MaxWorkers bounds concurrent file reads. Zero means GOMAXPROCS.
	MaxWorkers int
	Logger     logrus.FieldLogger
}

func (r *Reader) limit() int64 {
	if r.MaxElements > 0 {
		return r.MaxElements
	}
	return DefaultMaxElements
}

func (r *Reader) workers() int {
	if r.MaxWorkers > 0 {
		return r.MaxWorkers
	}
	return runtime.GOMAXPROCS(0)
}

func (r *Reader) log() logrus.FieldLogger {
	if r.Logger != nil {
		return r.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// ResultTooLargeError reports an output tensor over the element cap.
type ResultTooLargeError struct {
	Elements int64
	Limit    int64
}

func (e *ResultTooLargeError) Error() string {
	return fmt.Sprintf("result of %s values is too large, the limit is %s values",
		humanize.Comma(e.Elements), humanize.Comma(e.Limit))
}

// TopologyTooSmallError reports a subgrid partition so coarse that not even
// one file's raw subgrids fit under the element cap.
type TopologyTooSmallError struct {
	Topology Topology
	Limit    int64
}

func (e *TopologyTooSmallError) Error() string {
	t := e.Topology
	return fmt.Sprintf("subgrid topology %dx%dx%d of a %dx%dx%d grid needs more than %s values per file",
		t.P, t.Q, t.R, t.NX, t.NY, t.NZ, humanize.Comma(e.Limit))
}

// FileReadError reports a missing, short or inconsistent file. Subgrid is
// -1 when the failure is in the file header.
type FileReadError struct {
	Path    string
	Subgrid int
	Offset  int64
	Err     error
}

func (e *FileReadError) Error() string {
	if e.Subgrid < 0 {
		return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("reading %s subgrid %d at byte %d: %v", e.Path, e.Subgrid, e.Offset, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

// ReadFiles reads the window c out of every path into a tensor of shape
// [len(paths), z, y, x]. The first file's header defines the topology for
// all of them. Files are read in batches sized so that the raw subgrid
// cells in flight stay under the element cap, and each batch finishes
// before the next starts.
func (r *Reader) ReadFiles(ctx context.Context, paths []string, c *bounds.Constraint) (*ndarray.Tensor, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to read")
	}
	h, err := readHeaderFile(paths[0])
	if err != nil {
		return nil, err
	}
	topo := h.Topology
	w, err := c.Resolve(topo.NX, topo.NY, topo.NZ)
	if err != nil {
		return nil, err
	}

	limit := r.limit()
	if total := int64(len(paths)) * int64(w.Len()); total > limit {
		return nil, &ResultTooLargeError{Elements: total, Limit: limit}
	}
	perFile := int64(topo.NX/topo.P) * int64(topo.NY/topo.Q) * int64(topo.NZ/topo.R)
	maxFiles := limit / perFile
	if maxFiles <= 0 {
		return nil, &TopologyTooSmallError{Topology: topo, Limit: limit}
	}
	batch := int(min(maxFiles, int64(len(paths))))

	out := ndarray.New(len(paths), w.NZ, w.NY, w.NX)
	r.log().WithFields(logrus.Fields{
		"files":    len(paths),
		"batch":    batch,
		"window":   c.String(),
		"output":   humanize.Bytes(uint64(out.Len()) * cellSize),
		"subgrids": topo.P * topo.Q * topo.R,
	}).Debug("reading pfb files")

	for start := 0; start < len(paths); start += batch {
		end := min(start+batch, len(paths))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers())
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return readInto(paths[i], topo, w, out.Slab(i))
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadFile reads the window c of one file as a [z, y, x] tensor.
func (r *Reader) ReadFile(ctx context.Context, path string, c *bounds.Constraint) (*ndarray.Tensor, error) {
	t, err := r.ReadFiles(ctx, []string{path}, c)
	if err != nil {
		return nil, err
	}
	return t.Slab(0), nil
}

func readHeaderFile(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, &FileReadError{Path: path, Subgrid: -1, Err: err}
	}
	defer f.Close()
	h, err := ReadHeader(f)
	var he *HeaderError
	if errors.As(err, &he) {
		he.Path = path
	}
	return h, err
}

// readInto maps one file and copies the window out of every subgrid it
// touches into dst, a [z, y, x] tensor.
func readInto(path string, topo Topology, w bounds.Window, dst *ndarray.Tensor) error {
	f, err := os.Open(path)
	if err != nil {
		return &FileReadError{Path: path, Subgrid: -1, Err: err}
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return &FileReadError{Path: path, Subgrid: -1, Err: err}
	}
	if st.Size() < headerSize+subgridHeader {
		return &FileReadError{Path: path, Subgrid: -1, Err: fmt.Errorf("file is %d bytes, too short for a header", st.Size())}
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return &FileReadError{Path: path, Subgrid: -1, Err: fmt.Errorf("mapping file: %w", err)}
	}
	defer m.Unmap()

	h, err := parseHeader(m[:headerSize+subgridHeader])
	if err != nil {
		return &FileReadError{Path: path, Subgrid: -1, Err: err}
	}
	if h.Topology != topo {
		return &FileReadError{Path: path, Subgrid: -1, Err: fmt.Errorf("grid %dx%dx%d in %d subgrids differs from the first file",
			h.NX, h.NY, h.NZ, h.NumSubgrids)}
	}

	x1, y1, z1 := w.X0+w.NX, w.Y0+w.NY, w.Z0+w.NZ
	lx, ly := topo.Locate(AxisX, w.X0), topo.Locate(AxisY, w.Y0)
	lz, hz := topo.Locate(AxisZ, w.Z0), topo.Locate(AxisZ, z1-1)
	for rz := lz; rz <= hz; rz++ {
		rx, ry := lx, ly
		for visits := 1; ; visits++ {
			if visits > topo.P*topo.Q {
				return &FileReadError{Path: path, Subgrid: topo.Index(rx, ry, rz), Offset: topo.Offset(rx, ry, rz),
					Err: fmt.Errorf("subgrid walk exceeded %d visits", topo.P*topo.Q)}
			}
			if err := copySubgrid(m, path, topo, rx, ry, rz, w, dst); err != nil {
				return err
			}
			if topo.Origin(AxisX, rx)+topo.Size(AxisX, rx) < x1 {
				rx++
				continue
			}
			if topo.Origin(AxisY, ry)+topo.Size(AxisY, ry) < y1 {
				rx = lx
				ry++
				continue
			}
			break
		}
	}
	return nil
}

func copySubgrid(m []byte, path string, topo Topology, rx, ry, rz int, w bounds.Window, dst *ndarray.Tensor) error {
	idx := topo.Index(rx, ry, rz)
	off := topo.Offset(rx, ry, rz)
	fail := func(format string, args ...any) error {
		return &FileReadError{Path: path, Subgrid: idx, Offset: off, Err: fmt.Errorf(format, args...)}
	}
	if off+subgridHeader > int64(len(m)) {
		return fail("subgrid header past end of file (%d bytes)", len(m))
	}
	sg := parseSubgridHeader(m[off:])
	if want := topo.subgridAt(rx, ry, rz); sg != want {
		return fail("subgrid header %+v does not match topology %+v", sg, want)
	}
	data := off + subgridHeader
	if end := data + cellSize*int64(sg.cells()); end > int64(len(m)) {
		return fail("subgrid data ends at byte %d past end of file (%d bytes)", end, len(m))
	}

	x0, x1 := max(w.X0, sg.X), min(w.X0+w.NX, sg.X+sg.NX)
	y0, y1 := max(w.Y0, sg.Y), min(w.Y0+w.NY, sg.Y+sg.NY)
	z0, z1 := max(w.Z0, sg.Z), min(w.Z0+w.NZ, sg.Z+sg.NZ)
	for k := z0; k < z1; k++ {
		for j := y0; j < y1; j++ {
			src := data + cellSize*int64(((k-sg.Z)*sg.NY+(j-sg.Y))*sg.NX+(x0-sg.X))
			row := ((k-w.Z0)*w.NY + (j - w.Y0)) * w.NX
			for i := x0; i < x1; i++ {
				dst.Data[row+i-w.X0] = math.Float64frombits(binary.BigEndian.Uint64(m[src:]))
				src += cellSize
			}
		}
	}
	return nil
}
