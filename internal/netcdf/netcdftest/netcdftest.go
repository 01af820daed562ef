// Package netcdftest writes small NetCDF files for tests.
package netcdftest

import (
	"os"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/stretchr/testify/require"
)

// Var is one float64 variable and its row-major values.
type Var struct {
	Name   string
	Dims   []string
	Values []float64
	Attrs  map[string]string
}

// Write creates a NetCDF classic file at path with the given dimensions
// and variables.
func Write(t *testing.T, path string, dims []string, lengths []int, vars ...Var) {
	t.Helper()
	h := cdf.NewHeader(dims, lengths)
	h.AddAttribute("", "comment", "test fixture")
	for _, v := range vars {
		h.AddVariable(v.Name, v.Dims, []float64{0})
		for k, a := range v.Attrs {
			h.AddAttribute(v.Name, k, a)
		}
	}
	h.Define()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	nc, err := cdf.Create(f, h)
	require.NoError(t, err)
	for _, v := range vars {
		end := nc.Header.Lengths(v.Name)
		w := nc.Writer(v.Name, make([]int, len(end)), end)
		_, err := w.Write(v.Values)
		require.NoError(t, err, v.Name)
	}
	require.NoError(t, cdf.UpdateNumRecs(f))
}

// Seq returns n values start, start+1, ...
func Seq(start float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}
