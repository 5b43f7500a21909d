package probe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus metrics for the probe sweeper.
//
// Sweep metrics:
//   - prober_sweep_runs_total: Total sweep runs by status (started/success/failure)
//   - prober_sweep_duration_seconds: Duration histogram of sweep execution
//   - prober_sweep_last_success_timestamp: Unix timestamp of last successful sweep
//
// Per-target metrics:
//   - prober_probes_total: Total probes by target and outcome
//   - prober_target_up: 1 if the target's last probe succeeded, 0 otherwise
type Metrics struct {
	// SweepRunsTotal counts sweep runs.
	// Labels: status (started, success, failure)
	SweepRunsTotal *prometheus.CounterVec

	// SweepDurationSeconds measures full-sweep duration.
	// Buckets cover sub-second sweeps up to the 10 minute config cap.
	SweepDurationSeconds prometheus.Histogram

	// SweepLastSuccessTimestamp records the Unix timestamp of the last
	// sweep that finished without error.
	SweepLastSuccessTimestamp prometheus.Gauge

	// ProbesTotal counts individual probes.
	// Labels: target, outcome (success, rejected, exhausted, timeout, failure)
	ProbesTotal *prometheus.CounterVec

	// TargetUp reflects the result of each target's most recent probe.
	// Labels: target
	TargetUp *prometheus.GaugeVec
}

// NewMetrics creates the prober metrics. Registration happens via
// promauto on the default registry; MustRegister is kept for symmetry
// with the rest of the metric constructors.
func NewMetrics() *Metrics {
	return &Metrics{
		SweepRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "prober_sweep_runs_total",
			Help: "Total number of probe sweeps by status (started/success/failure)",
		}, []string{"status"}),

		SweepDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "prober_sweep_duration_seconds",
			Help:    "Duration of probe sweeps in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 600},
		}),

		SweepLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "prober_sweep_last_success_timestamp",
			Help: "Unix timestamp of the last successful probe sweep",
		}),

		ProbesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "prober_probes_total",
			Help: "Total number of probes by target and outcome",
		}, []string{"target", "outcome"}),

		TargetUp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "prober_target_up",
			Help: "Whether the target's most recent probe succeeded (1) or not (0)",
		}, []string{"target"}),
	}
}

// MustRegister is a no-op kept for API symmetry; promauto already
// registered everything in NewMetrics.
func (m *Metrics) MustRegister() {}

// RecordSweepRun increments the sweep run counter for the given status.
func (m *Metrics) RecordSweepRun(status string) {
	if m == nil {
		return
	}
	m.SweepRunsTotal.WithLabelValues(status).Inc()
}

// RecordSweepDuration observes a completed sweep's duration in seconds.
func (m *Metrics) RecordSweepDuration(seconds float64) {
	if m == nil {
		return
	}
	m.SweepDurationSeconds.Observe(seconds)
}

// RecordSweepSuccess records the current time as the last successful
// sweep completion.
func (m *Metrics) RecordSweepSuccess() {
	if m == nil {
		return
	}
	m.SweepLastSuccessTimestamp.SetToCurrentTime()
}

// RecordProbe increments the probe counter for the target and outcome.
func (m *Metrics) RecordProbe(target, outcome string) {
	if m == nil {
		return
	}
	m.ProbesTotal.WithLabelValues(target, outcome).Inc()
}

// SetTargetUp updates the up gauge from the target's latest probe.
func (m *Metrics) SetTargetUp(target string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	m.TargetUp.WithLabelValues(target).Set(v)
}
