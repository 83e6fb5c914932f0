package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Parse("hls", "success")
		m.Fetch("ok")
		m.ProbeAttempt("failed")
		m.CacheHit("content")
		m.InFlightAdd(1)
		m.SetMastersCached(3)
		m.APIRequest("GET", "/v1/manifest", "200", 0.1)
	})
	assert.NotNil(t, m.Handler())
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Parse("hls", "success")
	m.Parse("hls", "success")
	m.Fetch("failed")
	m.CacheHit("master")
	m.InFlightAdd(2)
	m.InFlightAdd(-1)
	m.SetMastersCached(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ParseTotal.WithLabelValues("hls", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("master")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.MastersCached))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Parse("dash", "parse-error")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `veldscan_parse_total{format="dash",status="parse-error"} 1`)
}
