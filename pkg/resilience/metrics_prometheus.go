package resilience

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
//
// This implementation provides observability for protected calls with
// detailed metrics including:
// - Call counters by context name and outcome
// - Call duration histograms
// - Circuit breaker state and transition tracking
// - Fast-fail rejection counters
// - Retry attempt counters and backoff delay histograms
// - Registry size gauges and LRU eviction counters
//
// All metrics use a custom registry for better testability and isolation.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// callsTotal tracks completed protected calls.
	// Labels:
	//   - context: Name of the protected dependency
	//   - outcome: "success", "failure", "timeout", "rejected" or "exhausted"
	callsTotal *prometheus.CounterVec

	// callDuration tracks the wall-clock duration of whole protected
	// calls, retries and backoff sleeps included.
	// Labels:
	//   - context: Name of the protected dependency
	//
	// Buckets cover fast local calls through slow provider calls:
	// - 5ms to 100ms (databases, caches)
	// - 250ms to 5s (HTTP APIs)
	// - 10s to 60s (AI providers, retry loops with backoff)
	callDuration *prometheus.HistogramVec

	// rejectionsTotal tracks calls fast-failed by an open circuit
	// breaker without ever invoking the operation.
	// Labels:
	//   - context: Name of the protected dependency
	rejectionsTotal *prometheus.CounterVec

	// circuitState tracks the current circuit breaker state.
	// Labels:
	//   - context: Name of the protected dependency
	//
	// Values:
	//   - 0: Closed (normal operation)
	//   - 1: Open (failing fast)
	//   - 2: Half-Open (testing recovery)
	circuitState *prometheus.GaugeVec

	// transitionsTotal tracks circuit breaker state transitions.
	// Labels:
	//   - context: Name of the protected dependency
	//   - from_state: State before the transition
	//   - to_state: State after the transition
	transitionsTotal *prometheus.CounterVec

	// retryAttemptsTotal tracks attempts executed inside retry loops.
	// Labels:
	//   - context: Name of the protected dependency
	retryAttemptsTotal *prometheus.CounterVec

	// retryDelay tracks the backoff delays scheduled between attempts.
	// Labels:
	//   - context: Name of the protected dependency
	retryDelay *prometheus.HistogramVec

	// timeoutsTotal tracks attempts that exceeded their deadline.
	// Labels:
	//   - context: Name of the protected dependency
	timeoutsTotal *prometheus.CounterVec

	// registrySize tracks the current number of circuit breakers held
	// by the registry.
	registrySize prometheus.Gauge

	// evictionsTotal tracks circuit breakers evicted from the registry
	// to make room for new entries.
	// Labels:
	//   - context: Name of the evicted breaker
	evictionsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance with a custom registry.
//
// Using a custom registry (instead of the global prometheus.DefaultRegisterer) provides:
// - Better testability (isolated metrics per test)
// - No metric conflicts when running multiple instances
// - Explicit metric lifecycle management
//
// The registry can be passed to promhttp.HandlerFor() to expose metrics.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	callsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_calls_total",
			Help: "Total protected calls by context and outcome",
		},
		[]string{"context", "outcome"},
	)

	callDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resilience_call_duration_seconds",
			Help:    "Duration of protected calls including retries and backoff",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"context"},
	)

	rejectionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_rejections_total",
			Help: "Total calls rejected by an open circuit breaker",
		},
		[]string{"context"},
	)

	circuitState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resilience_circuit_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"context"},
	)

	transitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_circuit_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"context", "from_state", "to_state"},
	)

	retryAttemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_retry_attempts_total",
			Help: "Total attempts executed inside retry loops",
		},
		[]string{"context"},
	)

	retryDelay := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resilience_retry_delay_seconds",
			Help:    "Backoff delays scheduled between retry attempts",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"context"},
	)

	timeoutsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_timeouts_total",
			Help: "Total attempts that exceeded their deadline",
		},
		[]string{"context"},
	)

	registrySize := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "resilience_registry_size",
			Help: "Current number of circuit breakers held by the registry",
		},
	)

	evictionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_registry_evictions_total",
			Help: "Total circuit breakers evicted from the registry",
		},
		[]string{"context"},
	)

	// Register all metrics with the custom registry
	registry.MustRegister(
		callsTotal,
		callDuration,
		rejectionsTotal,
		circuitState,
		transitionsTotal,
		retryAttemptsTotal,
		retryDelay,
		timeoutsTotal,
		registrySize,
		evictionsTotal,
	)

	return &PrometheusMetrics{
		registry:           registry,
		callsTotal:         callsTotal,
		callDuration:       callDuration,
		rejectionsTotal:    rejectionsTotal,
		circuitState:       circuitState,
		transitionsTotal:   transitionsTotal,
		retryAttemptsTotal: retryAttemptsTotal,
		retryDelay:         retryDelay,
		timeoutsTotal:      timeoutsTotal,
		registrySize:       registrySize,
		evictionsTotal:     evictionsTotal,
	}
}

// Registry returns the Prometheus registry containing all resilience metrics.
//
// This can be used with promhttp.HandlerFor() to expose metrics:
//
//	metrics := NewPrometheusMetrics()
//	http.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCall records a completed protected call with its terminal outcome.
func (m *PrometheusMetrics) RecordCall(name, outcome string, duration time.Duration) {
	m.callsTotal.WithLabelValues(name, outcome).Inc()
	m.callDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// RecordRejection records a call fast-failed by an open circuit breaker.
func (m *PrometheusMetrics) RecordRejection(name string) {
	m.rejectionsTotal.WithLabelValues(name).Inc()
}

// RecordCircuitState records the current state of a circuit breaker.
//
// The state is mapped to a numeric gauge for Prometheus alerting:
//   - 0 = closed
//   - 1 = open
//   - 2 = half-open
func (m *PrometheusMetrics) RecordCircuitState(name, state string) {
	var stateValue float64
	switch state {
	case "closed":
		stateValue = 0
	case "open":
		stateValue = 1
	case "half-open":
		stateValue = 2
	default:
		// Unknown state, default to closed
		stateValue = 0
	}
	m.circuitState.WithLabelValues(name).Set(stateValue)
}

// RecordStateChange records a circuit breaker state transition.
func (m *PrometheusMetrics) RecordStateChange(name, from, to string) {
	m.transitionsTotal.WithLabelValues(name, from, to).Inc()
}

// RecordRetryAttempt records one executed attempt inside a retry loop.
func (m *PrometheusMetrics) RecordRetryAttempt(name string, attempt int) {
	m.retryAttemptsTotal.WithLabelValues(name).Inc()
}

// RecordRetryDelay records the backoff delay scheduled before the next attempt.
func (m *PrometheusMetrics) RecordRetryDelay(name string, delay time.Duration) {
	m.retryDelay.WithLabelValues(name).Observe(delay.Seconds())
}

// RecordTimeout records an attempt that exceeded its deadline.
func (m *PrometheusMetrics) RecordTimeout(name string) {
	m.timeoutsTotal.WithLabelValues(name).Inc()
}

// SetRegistrySize records the current number of breakers in the registry.
//
// This metric is useful for monitoring registry pressure and alerting
// when approaching the configured capacity.
func (m *PrometheusMetrics) SetRegistrySize(count int) {
	m.registrySize.Set(float64(count))
}

// RecordEviction records that a breaker was evicted from the registry.
//
// Evictions occur when the registry reaches capacity. High eviction
// rates usually mean the capacity is too small for the number of
// distinct dependencies.
func (m *PrometheusMetrics) RecordEviction(name string) {
	m.evictionsTotal.WithLabelValues(name).Inc()
}
