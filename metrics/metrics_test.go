package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := New()

	c.RecordOpen(time.Millisecond, nil)
	c.RecordOpen(time.Millisecond, errors.New("boom"))
	c.RecordLookup(time.Microsecond, true, nil)
	c.RecordLookup(time.Microsecond, false, nil)
	c.RecordLookup(time.Microsecond, false, nil)
	c.RecordNearest(5, 5, time.Microsecond, nil)
	c.RecordNearest(1, 0, time.Microsecond, errors.New("corrupt"))
	c.RecordBuild(100, 4096, time.Second, nil)
	c.RecordBuild(0, 0, time.Second, errors.New("no items"))
	c.RecordHTTP("/v1/items", 200, time.Millisecond)
	c.RecordRateLimited()

	assert.InDelta(t, 1, testutil.ToFloat64(c.opens.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.opens.WithLabelValues("error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.lookups.WithLabelValues("hit")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.lookups.WithLabelValues("miss")), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(c.nearestResults), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.nearest.WithLabelValues("error")), 0)
	assert.InDelta(t, 100, testutil.ToFloat64(c.buildItems), 0)
	assert.InDelta(t, 4096, testutil.ToFloat64(c.buildBytes), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.builds.WithLabelValues("error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.httpRequests.WithLabelValues("/v1/items", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.httpLimited), 0)
}

func TestHandler(t *testing.T) {
	c := New()
	c.RecordLookup(time.Microsecond, true, nil)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `gisdb_lookups_total{result="hit"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
