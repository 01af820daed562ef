package projection

import (
	"testing"

	"github.com/ctessum/geom/proj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/hydro-catalog/internal/catalog/catalogtest"
)

func conus1(t *testing.T) *Grid {
	t.Helper()
	m := catalogtest.Model(t, "/data")
	g, err := New(m.Table("grid").Row("conus1"))
	require.NoError(t, err)
	return g
}

func TestNew(t *testing.T) {
	g := conus1(t)
	assert.Equal(t, "conus1", g.Name)
	assert.Equal(t, []int{5, 1888, 3342}, g.Shape)
	assert.Equal(t, 1000.0, g.Resolution)
	assert.InDelta(t, -604957.0654, g.OriginY, 1e-6)
}

func TestLongLatDefPlainDecimal(t *testing.T) {
	def := longLatDef(6378137, 6356752.314140356)
	assert.Equal(t, "+proj=longlat +a=6378137 +b=6356752.314140356", def)
	assert.NotContains(t, def, "e+")

	sr, err := proj.Parse(def)
	require.NoError(t, err)
	assert.Equal(t, 6378137.0, sr.A)
	assert.InDelta(t, 6356752.314140356, sr.B, 1e-6)
}

func TestNewWithoutCRS(t *testing.T) {
	m := catalogtest.Model(t, "/data")
	_, err := New(m.Table("grid").Row("tiny"))
	assert.EqualError(t, err, "grid 'tiny' does not have a projection")
}

func TestToIJ(t *testing.T) {
	g := conus1(t)

	ij, err := g.ToIJ(31.759219, -115.902573)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 10}, ij)

	bounds, err := g.ToIJ(31.65, -115.98, 31.759219, -115.902573)
	require.NoError(t, err)
	assert.Equal(t, 0, bounds[0])
	assert.Equal(t, 0, bounds[1])
	assert.Equal(t, []int{10, 10}, bounds[2:])
}

func TestToXYOutOfGrid(t *testing.T) {
	g := conus1(t)

	_, err := g.ToXY(60, -40)
	var oob *OutOfGridError
	require.ErrorAs(t, err, &oob)
	assert.Equal(t, 3342, oob.Width)

	_, err = g.ToXY(31.7)
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	g := conus1(t)

	ll, err := g.ToLatLon(10, 10)
	require.NoError(t, err)
	assert.InDelta(t, 31.759219, ll[0], 1e-3)
	assert.InDelta(t, -115.902573, ll[1], 1e-3)

	for _, p := range [][2]float64{{100, 200}, {1500, 900}, {3000, 1800}} {
		ll, err := g.ToLatLon(p[0], p[1])
		require.NoError(t, err)
		xy, err := g.ToXY(ll...)
		require.NoError(t, err)
		assert.InDelta(t, p[0], xy[0], 1e-3)
		assert.InDelta(t, p[1], xy[1], 1e-3)
	}
}
