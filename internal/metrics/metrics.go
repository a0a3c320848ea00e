// Package metrics exposes the dashboard's prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simp-lee/rentadmin/internal/domain"
	"github.com/simp-lee/rentadmin/internal/listing"
)

const namespace = "rentadmin"

// Metrics implements backend.Observer and listing.Observer on its own
// registry.
type Metrics struct {
	registry *prometheus.Registry

	backendCalls   *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
	fetches        *prometheus.CounterVec
	mutations      *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
}

// New creates a Metrics with every collector registered, plus the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_calls_total",
			Help:      "Marketplace backend calls by resource, operation and outcome.",
		}, []string{"resource", "op", "outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_call_duration_seconds",
			Help:      "Latency of marketplace backend calls.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 15},
		}, []string{"resource", "op"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_cache_lookups_total",
			Help:      "Snapshot cache lookups by resource and result.",
		}, []string{"resource", "result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_fetches_total",
			Help:      "Completed list fetches by resource, status and whether the response was discarded as superseded.",
		}, []string{"resource", "status", "discarded"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Settled mutations by resource, kind and outcome.",
		}, []string{"resource", "kind", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "View API requests by route and status code class.",
		}, []string{"method", "route", "code"}),
	}
	reg.MustRegister(
		m.backendCalls,
		m.backendLatency,
		m.cacheLookups,
		m.fetches,
		m.mutations,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveBackendCall implements backend.Observer.
func (m *Metrics) ObserveBackendCall(resource, op string, latency time.Duration, err error) {
	m.backendCalls.WithLabelValues(resource, op, outcome(err)).Inc()
	m.backendLatency.WithLabelValues(resource, op).Observe(latency.Seconds())
}

// CacheLookup implements listing.Observer.
func (m *Metrics) CacheLookup(resource string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(resource, result).Inc()
}

// FetchCompleted implements listing.Observer.
func (m *Metrics) FetchCompleted(resource string, status listing.Status, discarded bool) {
	d := "false"
	if discarded {
		d = "true"
	}
	m.fetches.WithLabelValues(resource, string(status), d).Inc()
}

// MutationCompleted implements listing.Observer.
func (m *Metrics) MutationCompleted(resource string, kind listing.MutationKind, err error) {
	m.mutations.WithLabelValues(resource, string(kind), outcome(err)).Inc()
}

// ObserveRequest counts one view API request. route is the matched route
// pattern, not the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, codeClass(status)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsTransport(err):
		return "transport_error"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsRejected(err), domain.IsAlreadyExists(err), domain.IsValidation(err):
		return "rejected"
	}
	return "error"
}

func codeClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	}
	return "2xx"
}
