// Package metrics holds the Prometheus collectors of the scanner. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "veldscan"

// Metrics groups the scanner's collectors.
type Metrics struct {
	ParseTotal         *prometheus.CounterVec
	FetchTotal         *prometheus.CounterVec
	ProbeAttemptsTotal *prometheus.CounterVec
	CacheHitsTotal     *prometheus.CounterVec
	InFlight           prometheus.Gauge
	MastersCached      prometheus.Gauge

	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg. A nil reg uses a
// fresh private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		ParseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_total",
			Help:      "Top-level manifest parses by format and status.",
		}, []string{"format", "status"}),
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Manifest fetches by outcome.",
		}, []string{"outcome"}),
		ProbeAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_attempts_total",
			Help:      "Rendition probe attempts by outcome.",
		}, []string{"outcome"}),
		CacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache hits by cache name.",
		}, []string{"cache"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight",
			Help:      "Manifest parses currently in progress.",
		}),
		MastersCached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "masters_cached",
			Help:      "Master manifests held in the master cache.",
		}),
		APIRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Inspection API requests.",
		}, []string{"method", "endpoint", "status"}),
		APIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Inspection API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint", "status"}),
	}

	reg.MustRegister(
		m.ParseTotal,
		m.FetchTotal,
		m.ProbeAttemptsTotal,
		m.CacheHitsTotal,
		m.InFlight,
		m.MastersCached,
		m.APIRequestsTotal,
		m.APIRequestDuration,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Parse counts one finished top-level parse.
func (m *Metrics) Parse(format, status string) {
	if m == nil {
		return
	}
	m.ParseTotal.WithLabelValues(format, status).Inc()
}

// Fetch counts one fetch outcome ("ok", "failed").
func (m *Metrics) Fetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(outcome).Inc()
}

// ProbeAttempt counts one probe attempt outcome ("ok", "failed").
func (m *Metrics) ProbeAttempt(outcome string) {
	if m == nil {
		return
	}
	m.ProbeAttemptsTotal.WithLabelValues(outcome).Inc()
}

// CacheHit counts a hit on the named cache.
func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(cache).Inc()
}

// InFlightAdd adjusts the in-flight gauge.
func (m *Metrics) InFlightAdd(delta float64) {
	if m == nil {
		return
	}
	m.InFlight.Add(delta)
}

// SetMastersCached sets the master cache gauge.
func (m *Metrics) SetMastersCached(n int) {
	if m == nil {
		return
	}
	m.MastersCached.Set(float64(n))
}

// APIRequest records one inspection API request.
func (m *Metrics) APIRequest(method, endpoint, status string, seconds float64) {
	if m == nil {
		return
	}
	m.APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.APIRequestDuration.WithLabelValues(method, endpoint, status).Observe(seconds)
}
