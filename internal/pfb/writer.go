package pfb

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/hurou927/hydro-catalog/internal/ndarray"
)

// Write encodes data, a [z, y, x] tensor, split into p*q*r subgrids.
// Only the origin and spacing fields of h are used; the shape comes from
// data.
func Write(w io.Writer, h Header, data *ndarray.Tensor, p, q, r int) error {
	if data.Rank() != 3 {
		return fmt.Errorf("pfb data must be [z, y, x], got shape %v", data.Shape)
	}
	nz, ny, nx := data.Shape[0], data.Shape[1], data.Shape[2]
	topo, err := Partition(nx, ny, nz, p, q, r)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	be := func(v any) {
		if err == nil {
			err = binary.Write(bw, binary.BigEndian, v)
		}
	}
	be([]float64{h.X, h.Y, h.Z})
	be([]int32{int32(nx), int32(ny), int32(nz)})
	be([]float64{h.DX, h.DY, h.DZ})
	be(int32(p * q * r))

	buf := make([]byte, 0, cellSize*topo.SGX*topo.SGY*topo.SGZ)
	for rz := 0; rz < topo.R; rz++ {
		for ry := 0; ry < topo.Q; ry++ {
			for rx := 0; rx < topo.P; rx++ {
				sg := topo.subgridAt(rx, ry, rz)
				be([]int32{
					int32(sg.X), int32(sg.Y), int32(sg.Z),
					int32(sg.NX), int32(sg.NY), int32(sg.NZ),
					int32(rx), int32(ry), int32(rz),
				})
				buf = buf[:0]
				for k := sg.Z; k < sg.Z+sg.NZ; k++ {
					for j := sg.Y; j < sg.Y+sg.NY; j++ {
						for i := sg.X; i < sg.X+sg.NX; i++ {
							buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(data.At(k, j, i)))
						}
					}
				}
				if err == nil {
					_, err = bw.Write(buf)
				}
			}
		}
	}
	if err != nil {
		return fmt.Errorf("writing pfb: %w", err)
	}
	return bw.Flush()
}

// WriteFile writes data to path with Write.
func WriteFile(path string, h Header, data *ndarray.Tensor, p, q, r int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, h, data, p, q, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
