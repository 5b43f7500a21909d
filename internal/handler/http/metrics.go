package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"breakwater/internal/handler/http/responsewriter"
)

var (
	opsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ops_http_requests_total",
			Help: "Total number of ops server HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Buckets skew low: ops endpoints serve snapshots from memory and
	// should answer in single-digit milliseconds.
	opsRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ops_http_request_duration_seconds",
			Help:    "Ops server HTTP request duration in seconds",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path", "status"},
	)

	opsRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ops_http_requests_in_flight",
			Help: "Current number of ops server HTTP requests being served",
		},
	)
)

// normalizePath maps request paths to their route patterns so the
// breaker name in reset URLs does not explode label cardinality.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/resilience/breakers/") &&
		strings.HasSuffix(path, "/reset") &&
		path != "/resilience/breakers/reset" {
		return "/resilience/breakers/{name}/reset"
	}
	return path
}

// MetricsMiddleware records request counts, latency and in-flight
// requests for the ops server.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opsRequestsInFlight.Inc()
		defer opsRequestsInFlight.Dec()

		path := normalizePath(r.URL.Path)

		wrapped := responsewriter.Wrap(w)

		start := time.Now()
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		status := strconv.Itoa(wrapped.StatusCode())
		opsRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		opsRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// MetricsHandler returns the handler for GET /metrics. It serves the
// default registry (ops server and config metrics) merged with any
// extra gatherers, typically the resilience metrics registry.
func MetricsHandler(extra ...prometheus.Gatherer) http.Handler {
	gatherers := make(prometheus.Gatherers, 0, len(extra)+1)
	gatherers = append(gatherers, prometheus.DefaultGatherer)
	gatherers = append(gatherers, extra...)

	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}
