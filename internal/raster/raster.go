// Package raster reads single band GeoTIFF grids.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"golang.org/x/image/tiff"

	"github.com/hurou927/hydro-catalog/internal/bounds"
	"github.com/hurou927/hydro-catalog/internal/ndarray"
)

// ReadTIFF decodes the first band of the TIFF at path into a [y, x] tensor.
// Rows keep the image order, so y index 0 is the first stored row. box
// crops x and y; its z range is ignored and nil keeps the whole image.
func ReadTIFF(path string, box *bounds.Constraint) (*ndarray.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding tiff %s: %w", path, err)
	}
	b := img.Bounds()
	nx, ny := b.Dx(), b.Dy()

	if box != nil {
		xy := *box
		xy.Z = bounds.Range{}
		box = &xy
	}
	w, err := box.Resolve(nx, ny, 1)
	if err != nil {
		return nil, err
	}

	out := ndarray.New(w.NY, w.NX)
	for j := 0; j < w.NY; j++ {
		row := b.Min.Y + w.Y0 + j
		for i := 0; i < w.NX; i++ {
			out.Set(pixel(img, b.Min.X+w.X0+i, row), j, i)
		}
	}
	return out, nil
}

func pixel(img image.Image, x, y int) float64 {
	switch m := img.(type) {
	case *image.Gray16:
		return float64(m.Gray16At(x, y).Y)
	case *image.Gray:
		return float64(m.GrayAt(x, y).Y)
	case *image.Paletted:
		return float64(m.ColorIndexAt(x, y))
	}
	return float64(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
}
