package netcdf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/hydro-catalog/internal/bounds"
	"github.com/hurou927/hydro-catalog/internal/netcdf/netcdftest"
)

func fixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.nc")
	netcdftest.Write(t, path,
		[]string{"member", "time", "z", "y", "x"}, []int{2, 4, 3, 3, 2},
		netcdftest.Var{Name: "time", Dims: []string{"time"}, Values: netcdftest.Seq(0, 4),
			Attrs: map[string]string{"units": "days since 2005-10-01"}},
		netcdftest.Var{Name: "flow", Dims: []string{"time", "y", "x"}, Values: netcdftest.Seq(0, 24)},
		netcdftest.Var{Name: "flow_xy", Dims: []string{"x", "y"}, Values: netcdftest.Seq(0, 6)},
		netcdftest.Var{Name: "ens", Dims: []string{"member", "time", "y", "x"}, Values: netcdftest.Seq(0, 48)},
		netcdftest.Var{Name: "press", Dims: []string{"z", "y", "x"}, Values: netcdftest.Seq(0, 18)},
	)
	return path
}

func day(d int) *time.Time {
	t := time.Date(2005, 10, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestReadVariableTime(t *testing.T) {
	path := fixture(t)

	data, times, err := ReadVariable(path, "flow", Selection{Period: "daily", Start: day(2)})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, data.Shape)
	assert.Equal(t, netcdftest.Seq(6, 6), data.Data)
	assert.Equal(t, []string{"2005-10-02T00:00:00.000000000"}, times)

	data, times, err = ReadVariable(path, "flow", Selection{Period: "daily", Start: day(1), End: day(3)})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 2}, data.Shape)
	assert.Equal(t, netcdftest.Seq(0, 12), data.Data)
	assert.Len(t, times, 2)

	data, times, err = ReadVariable(path, "flow", Selection{Period: "daily"})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3, 2}, data.Shape)
	assert.Len(t, times, 4)

	_, _, err = ReadVariable(path, "flow", Selection{Period: "daily", Start: day(20)})
	assert.ErrorContains(t, err, "outside the time dimension range 4")
}

func TestReadVariableBox(t *testing.T) {
	path := fixture(t)
	box := &bounds.Constraint{X: bounds.Point(1), Y: bounds.Point(2)}
	data, _, err := ReadVariable(path, "flow", Selection{Period: "daily", Start: day(2), Box: box})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, data.Shape)
	assert.Equal(t, 11.0, data.Data[0])

	box = &bounds.Constraint{X: bounds.Range{Start: 0, Stop: 2}, Y: bounds.Range{Start: 1, Stop: 3}}
	data, _, err = ReadVariable(path, "flow", Selection{Box: box})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2, 2}, data.Shape)
	assert.Equal(t, 2.0, data.At(0, 0, 0))
	assert.Equal(t, 23.0, data.At(3, 1, 1))

	_, _, err = ReadVariable(path, "flow", Selection{Box: &bounds.Constraint{X: bounds.Range{Start: 1, Stop: 5}, Y: bounds.Point(0)}})
	var ib *bounds.InvalidBoundsError
	assert.ErrorAs(t, err, &ib)
}

func TestReadVariableTransposesXY(t *testing.T) {
	data, times, err := ReadVariable(fixture(t), "flow_xy", Selection{})
	require.NoError(t, err)
	assert.Nil(t, times)
	assert.Equal(t, []int{3, 2}, data.Shape)
	assert.Equal(t, 5.0, data.At(2, 1))
	assert.Equal(t, 1.0, data.At(1, 0))
	assert.Equal(t, 3.0, data.At(0, 1))
}

func TestReadVariableMemberAndZ(t *testing.T) {
	path := fixture(t)
	data, _, err := ReadVariable(path, "ens", Selection{Period: "daily", Start: day(1), RunNumber: "2"})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, data.Shape)
	assert.Equal(t, netcdftest.Seq(24, 6), data.Data)

	_, _, err = ReadVariable(path, "ens", Selection{RunNumber: "3"})
	assert.Error(t, err)

	data, _, err = ReadVariable(path, "press", Selection{})
	require.NoError(t, err)
	assert.Equal(t, netcdftest.Seq(12, 6), data.Data)

	z := 0
	data, _, err = ReadVariable(path, "press", Selection{Z: &z})
	require.NoError(t, err)
	assert.Equal(t, netcdftest.Seq(0, 6), data.Data)
}

func TestReadVariableMissing(t *testing.T) {
	path := fixture(t)
	_, _, err := ReadVariable(path, "nope", Selection{})
	assert.ErrorContains(t, err, "has no variable nope")

	_, _, err = ReadVariable(filepath.Join(t.TempDir(), "absent.nc"), "flow", Selection{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMatchWildcard(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flow_2006.nc"), nil, 0o644))

	got, err := MatchWildcard(filepath.Join(dir, "flow_*"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "flow_2006.nc"), got)

	_, err = MatchWildcard(filepath.Join(dir, "temp_*"))
	assert.Error(t, err)

	got, err = MatchWildcard("/data/plain.nc")
	require.NoError(t, err)
	assert.Equal(t, "/data/plain.nc", got)
}
