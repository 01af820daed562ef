package pfb

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/hydro-catalog/internal/bounds"
	"github.com/hurou927/hydro-catalog/internal/ndarray"
)

// grid returns a [z, y, x] tensor whose values encode their position and seed.
func grid(nz, ny, nx int, seed float64) *ndarray.Tensor {
	t := ndarray.New(nz, ny, nx)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				t.Set(seed*1000+float64(k*100+j*10+i), k, j, i)
			}
		}
	}
	return t
}

func writeFile(t *testing.T, dir, name string, data *ndarray.Tensor, p, q, r int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, WriteFile(path, Header{DX: 1000, DY: 1000, DZ: 2}, data, p, q, r))
	return path
}

// referenceRead decodes a single-subgrid file without any topology logic.
func referenceRead(t *testing.T, path string) *ndarray.Tensor {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	nx := int(binary.BigEndian.Uint32(b[24:]))
	ny := int(binary.BigEndian.Uint32(b[28:]))
	nz := int(binary.BigEndian.Uint32(b[32:]))
	require.Equal(t, uint32(1), binary.BigEndian.Uint32(b[60:]))
	out := ndarray.New(nz, ny, nx)
	for i := range out.Data {
		out.Data[i] = math.Float64frombits(binary.BigEndian.Uint64(b[headerSize+subgridHeader+8*i:]))
	}
	return out
}

// crop slices a [z, y, x] tensor the way a window does.
func crop(src *ndarray.Tensor, w bounds.Window) *ndarray.Tensor {
	out := ndarray.New(w.NZ, w.NY, w.NX)
	for k := 0; k < w.NZ; k++ {
		for j := 0; j < w.NY; j++ {
			for i := 0; i < w.NX; i++ {
				out.Set(src.At(w.Z0+k, w.Y0+j, w.X0+i), k, j, i)
			}
		}
	}
	return out
}

func TestPartition(t *testing.T) {
	topo, err := Partition(7, 5, 4, 3, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, Topology{NX: 7, NY: 5, NZ: 4, SGX: 3, SGY: 3, SGZ: 2, P: 3, Q: 2, R: 2}, topo)

	var sizes, origins []int
	for i := 0; i < topo.P; i++ {
		sizes = append(sizes, topo.Size(AxisX, i))
		origins = append(origins, topo.Origin(AxisX, i))
	}
	assert.Equal(t, []int{3, 2, 2}, sizes)
	assert.Equal(t, []int{0, 3, 5}, origins)
	for x, want := range []int{0, 0, 0, 1, 1, 2, 2} {
		assert.Equal(t, want, topo.Locate(AxisX, x), "x=%d", x)
	}
	assert.Equal(t, 3, topo.Size(AxisY, 0))
	assert.Equal(t, 2, topo.Size(AxisY, 1))
	assert.Equal(t, 2, topo.Size(AxisZ, 1))

	even, err := Partition(6, 4, 1, 3, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, []int{even.Size(AxisX, 0), even.Size(AxisX, 1), even.Size(AxisX, 2)})

	_, err = Partition(5, 1, 1, 4, 1, 1)
	assert.Error(t, err)
	_, err = Partition(5, 1, 1, 6, 1, 1)
	assert.Error(t, err)
}

func TestOffsetMatchesLayout(t *testing.T) {
	for _, tc := range [][6]int{{7, 5, 4, 3, 2, 2}, {6, 4, 1, 3, 2, 1}, {10, 9, 3, 4, 3, 1}} {
		topo, err := Partition(tc[0], tc[1], tc[2], tc[3], tc[4], tc[5])
		require.NoError(t, err)
		off := int64(headerSize)
		for rz := 0; rz < topo.R; rz++ {
			for ry := 0; ry < topo.Q; ry++ {
				for rx := 0; rx < topo.P; rx++ {
					assert.Equal(t, off, topo.Offset(rx, ry, rz), "%v subgrid %d,%d,%d", tc, rx, ry, rz)
					off += subgridHeader + cellSize*int64(topo.subgridAt(rx, ry, rz).cells())
				}
			}
		}
		assert.Equal(t, topo.FileSize(), off)
	}
}

func TestReadHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Header{X: 1, Y: 2, Z: 3, DX: 1000, DY: 1000, DZ: 2}, grid(4, 5, 7, 0), 3, 2, 2))

	h, err := ReadHeader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 7, h.NX)
	assert.Equal(t, 5, h.NY)
	assert.Equal(t, 4, h.NZ)
	assert.Equal(t, 1000.0, h.DX)
	assert.Equal(t, 3.0, h.Z)
	assert.Equal(t, 12, h.NumSubgrids)
	assert.Equal(t, 3, h.Topology.P)
	assert.Equal(t, int64(buf.Len()), h.Topology.FileSize())

	_, err = ReadHeader(bytes.NewReader(buf.Bytes()[:50]))
	var he *HeaderError
	assert.ErrorAs(t, err, &he)

	bad := append([]byte(nil), buf.Bytes()...)
	binary.BigEndian.PutUint32(bad[60:], 5)
	_, err = ReadHeader(bytes.NewReader(bad))
	assert.ErrorAs(t, err, &he)
}

func TestFullGridMatchesReference(t *testing.T) {
	dir := t.TempDir()
	data := grid(4, 5, 7, 1)
	ref := referenceRead(t, writeFile(t, dir, "single.pfb", data, 1, 1, 1))
	assert.Equal(t, data, ref)

	r := &Reader{}
	for _, pqr := range [][3]int{{3, 2, 2}, {2, 2, 1}, {7, 5, 1}, {1, 1, 4}} {
		path := writeFile(t, dir, "split.pfb", data, pqr[0], pqr[1], pqr[2])
		got, err := r.ReadFile(context.Background(), path, nil)
		require.NoError(t, err, "%v", pqr)
		assert.Equal(t, ref, got, "%v", pqr)
	}
}

func TestCropMatchesReference(t *testing.T) {
	dir := t.TempDir()
	data := grid(4, 9, 10, 2)
	path := writeFile(t, dir, "split.pfb", data, 4, 3, 2)
	r := &Reader{}

	constraints := []*bounds.Constraint{
		{X: bounds.Range{Start: 0, Stop: 10}, Y: bounds.Range{Start: 0, Stop: 9}},
		{X: bounds.Range{Start: 2, Stop: 8}, Y: bounds.Range{Start: 1, Stop: 7}},
		{X: bounds.Range{Start: 3, Stop: 4}, Y: bounds.Range{Start: 3, Stop: 4}, Z: bounds.Range{Start: 1, Stop: 3}},
		{X: bounds.Point(9), Y: bounds.Point(8)},
		{X: bounds.Point(5), Y: bounds.Point(0), Z: bounds.Range{Start: 3, Stop: 4}},
		{X: bounds.Range{Start: 6, Stop: 10}, Y: bounds.Range{Start: 5, Stop: 9}, Z: bounds.Range{Start: 2, Stop: 4}},
	}
	for _, c := range constraints {
		w, err := c.Resolve(10, 9, 4)
		require.NoError(t, err)
		got, err := r.ReadFile(context.Background(), path, c)
		require.NoError(t, err, c.String())
		assert.Equal(t, crop(data, w), got, c.String())
	}
}

func TestBatchedEqualsSequential(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 5; i++ {
		paths = append(paths, writeFile(t, dir, filepath.Base(t.Name())+string(rune('a'+i))+".pfb", grid(3, 5, 7, float64(i)), 3, 2, 2))
	}
	c := &bounds.Constraint{X: bounds.Range{Start: 1, Stop: 3}, Y: bounds.Point(2), Z: bounds.Range{Start: 0, Stop: 1}}

	// 2*2*1 raw cells per file and a cap of 12 gives batches of 3 then 2.
	batched := &Reader{MaxElements: 12, MaxWorkers: 2}
	got, err := batched.ReadFiles(context.Background(), paths, c)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 1, 1, 2}, got.Shape)

	unbounded := &Reader{}
	for i, p := range paths {
		one, err := unbounded.ReadFile(context.Background(), p, c)
		require.NoError(t, err)
		assert.Equal(t, one.Data, got.Slab(i).Data, p)
	}

	all, err := unbounded.ReadFiles(context.Background(), paths, c)
	require.NoError(t, err)
	assert.Equal(t, all, got)
}

func TestReadFilesLimits(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "single.pfb", grid(3, 5, 7, 0), 1, 1, 1)

	r := &Reader{MaxElements: 10}
	_, err := r.ReadFiles(context.Background(), []string{path}, nil)
	var tooLarge *ResultTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, int64(105), tooLarge.Elements)
	assert.Contains(t, err.Error(), "105")

	r = &Reader{MaxElements: 50}
	_, err = r.ReadFiles(context.Background(), []string{path}, &bounds.Constraint{X: bounds.Point(0), Y: bounds.Point(0), Z: bounds.Range{Start: 0, Stop: 1}})
	var tooSmall *TopologyTooSmallError
	require.ErrorAs(t, err, &tooSmall)
	assert.Equal(t, 1, tooSmall.Topology.P)

	_, err = (&Reader{}).ReadFiles(context.Background(), []string{path}, &bounds.Constraint{X: bounds.Range{Start: 5, Stop: 9}, Y: bounds.Point(0)})
	var ib *bounds.InvalidBoundsError
	assert.ErrorAs(t, err, &ib)

	_, err = (&Reader{}).ReadFiles(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestReadFilesErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.pfb", grid(3, 5, 7, 0), 3, 2, 1)
	r := &Reader{}
	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		missing := filepath.Join(dir, "missing.pfb")
		_, err := r.ReadFiles(ctx, []string{good, missing}, nil)
		var fe *FileReadError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, missing, fe.Path)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("truncated data", func(t *testing.T) {
		b, err := os.ReadFile(good)
		require.NoError(t, err)
		short := filepath.Join(dir, "short.pfb")
		require.NoError(t, os.WriteFile(short, b[:len(b)-8], 0o644))

		_, err = r.ReadFiles(ctx, []string{good, short}, nil)
		var fe *FileReadError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, short, fe.Path)
		assert.Equal(t, 5, fe.Subgrid)
		h, _ := ReadHeader(bytes.NewReader(b))
		assert.Equal(t, h.Topology.Offset(2, 1, 0), fe.Offset)
		assert.Contains(t, err.Error(), "subgrid 5")

		// The first subgrid is intact, so a window inside it still reads.
		_, err = r.ReadFiles(ctx, []string{short}, &bounds.Constraint{X: bounds.Point(0), Y: bounds.Point(0)})
		assert.NoError(t, err)
	})

	t.Run("different grid", func(t *testing.T) {
		other := writeFile(t, dir, "other.pfb", grid(3, 5, 6, 0), 3, 2, 1)
		_, err := r.ReadFiles(ctx, []string{good, other}, nil)
		var fe *FileReadError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, -1, fe.Subgrid)
	})

	t.Run("corrupt subgrid header", func(t *testing.T) {
		b, err := os.ReadFile(good)
		require.NoError(t, err)
		h, _ := ReadHeader(bytes.NewReader(b))
		off := h.Topology.Offset(1, 0, 0)
		binary.BigEndian.PutUint32(b[off+12:], 9)
		corrupt := filepath.Join(dir, "corrupt.pfb")
		require.NoError(t, os.WriteFile(corrupt, b, 0o644))

		_, err = r.ReadFiles(ctx, []string{corrupt}, nil)
		var fe *FileReadError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, 1, fe.Subgrid)
		assert.Equal(t, off, fe.Offset)
	})

	t.Run("bad header", func(t *testing.T) {
		junk := filepath.Join(dir, "junk.pfb")
		require.NoError(t, os.WriteFile(junk, []byte("not a pfb"), 0o644))
		_, err := r.ReadFiles(ctx, []string{junk}, nil)
		var he *HeaderError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, junk, he.Path)
	})
}
