package extract

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/hurou927/hydro-catalog/internal/catalog/catalogtest"
	"github.com/hurou927/hydro-catalog/internal/expand"
	"github.com/hurou927/hydro-catalog/internal/ndarray"
	"github.com/hurou927/hydro-catalog/internal/netcdf/netcdftest"
	"github.com/hurou927/hydro-catalog/internal/pfb"
	"github.com/hurou927/hydro-catalog/internal/resolve"
)

// layers returns a [nz, 6, 7] tensor on the tiny grid; value k*100+j*10+i.
func layers(nz int) *ndarray.Tensor {
	t := ndarray.New(nz, 6, 7)
	for k := 0; k < nz; k++ {
		for j := 0; j < 6; j++ {
			for i := 0; i < 7; i++ {
				t.Set(float64(k*100+j*10+i), k, j, i)
			}
		}
	}
	return t
}

func writePFB(t *testing.T, root, rel string, data *ndarray.Tensor) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, pfb.WriteFile(path, pfb.Header{DX: 1000, DY: 1000, DZ: 1}, data, 2, 2, 1))
}

func newExtractor(t *testing.T) (*Extractor, string) {
	t.Helper()
	root := t.TempDir()
	return New(catalogtest.Handle(t, root), nil, nil), root
}

func TestExtractDailyTimeAsZ(t *testing.T) {
	e, root := newExtractor(t)
	writePFB(t, root, "tiny/WY2006/tiny.APCP.daily.pfb", layers(3))

	res, err := e.Extract(context.Background(), map[string]string{
		"dataset": "tiny_forcing", "variable": "precipitation", "period": "daily",
		"start_time": "2005-10-02", "end_time": "2005-10-04",
	})
	require.NoError(t, err)
	assert.Equal(t, "20", res.Entry.ID())
	assert.Len(t, res.Paths, 1)
	assert.Equal(t, []int{2, 6, 7}, res.Data.Shape)
	assert.Equal(t, 100.0, res.Data.At(0, 0, 0))
	assert.Equal(t, 256.0, res.Data.At(1, 5, 6))
	assert.Equal(t, []string{"2005-10-02", "2005-10-03"}, res.TimeValues)

	res, err = e.Extract(context.Background(), map[string]string{
		"data_catalog_entry_id": "20", "start_time": "2005-10-02",
		"grid_bounds": "[1, 2, 4, 5]",
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 3}, res.Data.Shape)
	assert.Equal(t, 121.0, res.Data.At(0, 0, 0))
	assert.Equal(t, 143.0, res.Data.At(0, 2, 2))
	assert.NotEmpty(t, res.Summary())
}

func TestExtractHourlyPoint(t *testing.T) {
	e, root := newExtractor(t)
	writePFB(t, root, "tiny/WY2006/tiny.Temp.000001_to_000024.pfb", layers(24))

	res, err := e.Extract(context.Background(), map[string]string{
		"data_catalog_entry_id": "21",
		"start_time":            "2005-10-01 05:00:00", "end_time": "2005-10-01 08:00:00",
		"x": "2", "y": "3",
	})
	require.NoError(t, err)
	assert.Len(t, res.Paths, 1)
	assert.Equal(t, []int{3, 1, 1}, res.Data.Shape)
	assert.Equal(t, []float64{532, 632, 732}, res.Data.Data)
	assert.Equal(t, "2005-10-01 07:00:00", res.TimeValues[2])
}

func TestExtractStatic(t *testing.T) {
	e, root := newExtractor(t)
	writePFB(t, root, "tiny/mask.pfb", layers(1))

	res, err := e.Extract(context.Background(), map[string]string{"data_catalog_entry_id": "22"})
	require.NoError(t, err)
	assert.Equal(t, []int{6, 7}, res.Data.Shape)
	assert.Equal(t, 56.0, res.Data.At(5, 6))
	assert.Nil(t, res.TimeValues)
}

func TestExtractCPFB(t *testing.T) {
	e, root := newExtractor(t)
	writePFB(t, root, "tiny/clm/clm.00003.C.pfb", layers(14))

	res, err := e.Extract(context.Background(), map[string]string{
		"data_catalog_entry_id": "23", "start_time": "2005-10-03",
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 6, 7}, res.Data.Shape)
	assert.Equal(t, 1000.0, res.Data.At(0, 0, 0))
	assert.Equal(t, 10, res.Constraint.Z.Start)

	_, err = e.Extract(context.Background(), map[string]string{
		"data_catalog_entry_id": "24", "start_time": "2005-10-03",
	})
	assert.EqualError(t, err, "Unknown dataset_var for C.pfb entry 24.")
}

func TestExtractNetCDF(t *testing.T) {
	e, root := newExtractor(t)
	dir := filepath.Join(root, "tiny", "WY2006")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	netcdftest.Write(t, filepath.Join(dir, "flow.nc"), []string{"time", "y", "x"}, []int{4, 6, 7},
		netcdftest.Var{Name: "time", Dims: []string{"time"}, Values: netcdftest.Seq(0, 4),
			Attrs: map[string]string{"units": "days since 2005-10-01"}},
		netcdftest.Var{Name: "flow", Dims: []string{"time", "y", "x"}, Values: netcdftest.Seq(0, 4*6*7)},
	)

	res, err := e.Extract(context.Background(), map[string]string{
		"data_catalog_entry_id": "25", "start_time": "2005-10-02", "grid_bounds": "[0, 0, 2, 2]",
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2}, res.Data.Shape)
	assert.Equal(t, []float64{42, 43, 49, 50}, res.Data.Data)
	assert.Equal(t, []string{"2005-10-02T00:00:00.000000000"}, res.TimeValues)
}

func TestExtractTIFF(t *testing.T) {
	e, root := newExtractor(t)
	img := image.NewGray(image.Rect(0, 0, 7, 6))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tiny"), 0o755))
	f, err := os.Create(filepath.Join(root, "tiny", "flow.tif"))
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, img, nil))
	require.NoError(t, f.Close())

	res, err := e.Extract(context.Background(), map[string]string{"data_catalog_entry_id": "26", "grid_point": "[3, 1]"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, res.Data.Shape)
	assert.Equal(t, 10.0, res.Data.Data[0])
}

func TestExtractEnsemble(t *testing.T) {
	e, root := newExtractor(t)
	writePFB(t, root, "tiny/ens/run2/press.001.pfb", layers(3))
	writePFB(t, root, "tiny/ens/run2/press.002.pfb", layers(3))

	res, err := e.Extract(context.Background(), map[string]string{
		"data_catalog_entry_id": "27", "run_number": "2",
		"start_time": "2005-10-01", "end_time": "2005-10-03",
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 6, 7}, res.Data.Shape)
	assert.Len(t, res.TimeValues, 2)
}

func TestExtractErrors(t *testing.T) {
	e, _ := newExtractor(t)
	ctx := context.Background()

	_, err := e.Extract(ctx, map[string]string{"dataset": "nope"})
	assert.ErrorIs(t, err, resolve.ErrNoEntryFound)

	_, err = e.Extract(ctx, map[string]string{"data_catalog_entry_id": "10"})
	assert.EqualError(t, err, "File type 'vegp' is not supported yet.")

	_, err = e.Extract(ctx, map[string]string{"data_catalog_entry_id": "20", "start_time": "2003-10-02"})
	assert.ErrorContains(t, err, "does not exist")

	_, err = e.Extract(ctx, map[string]string{"data_catalog_entry_id": "20", "start_time": "2010-01-01"})
	var tr *expand.TimeRangeError
	assert.ErrorAs(t, err, &tr)

	_, err = e.Extract(ctx, map[string]string{"data_catalog_entry_id": "27", "start_time": "2005-10-01"})
	var pe *expand.PlaceholderError
	assert.ErrorAs(t, err, &pe)
}

func TestExtractTooLarge(t *testing.T) {
	root := t.TempDir()
	e := New(catalogtest.Handle(t, root), &pfb.Reader{MaxElements: 10}, nil)
	writePFB(t, root, "tiny/mask.pfb", layers(1))

	_, err := e.Extract(context.Background(), map[string]string{"data_catalog_entry_id": "22"})
	var tl *pfb.ResultTooLargeError
	assert.ErrorAs(t, err, &tl)
}

func TestAdjustDimensions(t *testing.T) {
	cases := []struct {
		name        string
		shape       []int
		period      string
		hasZ, hasEn bool
		want        []int
	}{
		{"static pfb", []int{1, 1, 6, 7}, "static", false, false, []int{6, 7}},
		{"static tif", []int{6, 7}, "", false, false, []int{6, 7}},
		{"static rank 3", []int{1, 6, 7}, "static", false, false, []int{6, 7}},
		{"static with z", []int{1, 5, 6, 7}, "static", true, false, []int{5, 6, 7}},
		{"daily per file", []int{4, 1, 6, 7}, "daily", false, false, []int{4, 6, 7}},
		{"daily in one file", []int{1, 4, 6, 7}, "daily", false, false, []int{4, 6, 7}},
		{"hourly folds", []int{2, 24, 6, 7}, "hourly", false, false, []int{48, 6, 7}},
		{"hourly rank 5", []int{1, 3, 1, 6, 7}, "hourly", false, false, []int{3, 6, 7}},
		{"daily with z", []int{3, 5, 6, 7}, "daily", true, false, []int{3, 5, 6, 7}},
		{"netcdf daily drop", []int{6, 7}, "daily", false, false, []int{1, 6, 7}},
		{"ensemble", []int{3, 5, 6, 7}, "daily", true, true, []int{1, 3, 5, 6, 7}},
		{"weekly", []int{2, 1, 6, 7}, "weekly", false, false, []int{2, 6, 7}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AdjustDimensions(ndarray.New(tc.shape...), tc.period, tc.hasZ, tc.hasEn)
			assert.Equal(t, tc.want, got.Shape)
		})
	}

	data := ndarray.New(2, 3, 1, 1)
	for i := range data.Data {
		data.Data[i] = float64(i)
	}
	got := AdjustDimensions(data, "hourly", false, false)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, got.Data)
}
