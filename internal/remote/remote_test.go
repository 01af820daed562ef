package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const body = `{"tables": {
  "grid": {"columns": ["id", "shape", "resolution_meters"],
           "rows": [["conus1", [5, 1888, 3342], 1000], ["conus2", "[10, 3256, 4442]", null]]},
  "variable": {"columns": ["id", "has_z"], "rows": [["pressure_head", "true"]]}
}}`

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ModelPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := &Client{URL: srv.URL + "/", Attempts: 1}
	m, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"grid", "variable"}, m.TableNames())

	conus1 := m.Table("grid").Row("conus1")
	require.NotNil(t, conus1)
	shape, ok := conus1.Get("shape")
	require.True(t, ok)
	ints, err := shape.Ints()
	require.NoError(t, err)
	assert.Equal(t, []int{5, 1888, 3342}, ints)
	assert.Equal(t, "1000", conus1.String("resolution_meters"))

	conus2 := m.Table("grid").Row("conus2")
	require.NotNil(t, conus2)
	shape, _ = conus2.Get("shape")
	ints, err = shape.Ints()
	require.NoError(t, err)
	assert.Equal(t, []int{10, 3256, 4442}, ints)
	assert.Equal(t, "", conus2.String("resolution_meters"))

	assert.Equal(t, "true", m.Table("variable").Row("pressure_head").String("has_z"))
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := &Client{URL: srv.URL, Attempts: 3, RetryInterval: time.Millisecond}
	m, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, m.TableNames(), 2)
	assert.EqualValues(t, 3, calls.Load())
}

func TestFetchGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := &Client{URL: srv.URL, Attempts: 2, RetryInterval: time.Millisecond}
	_, err := c.Fetch(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Status)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetchClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no pin", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := &Client{URL: srv.URL, Attempts: 5, RetryInterval: time.Millisecond}
	_, err := c.Fetch(context.Background())
	assert.ErrorContains(t, err, "401")
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetchBadRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tables": {"grid": {"columns": ["id", "shape"], "rows": [["conus1"]]}}}`))
	}))
	defer srv.Close()

	_, err := (&Client{URL: srv.URL}).Fetch(context.Background())
	assert.ErrorContains(t, err, "remote table grid")
}
