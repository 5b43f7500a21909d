// Package slo tracks the prober's service level objectives. The gauges
// are refreshed after every sweep so dashboards and alerts can compare
// current fleet health against the targets without recomputing ratios
// from raw counters.
package slo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets for the probed fleet.
const (
	// AvailabilitySLO is the target percentage of targets whose latest
	// probe succeeded.
	AvailabilitySLO = 99.0

	// BreakerBudgetSLO is the maximum acceptable fraction of registered
	// circuit breakers open at once.
	BreakerBudgetSLO = 0.10

	// SweepDurationSLO is the target upper bound for one sweep in
	// seconds. Sweeps near the schedule interval starve the next run.
	SweepDurationSLO = 30.0
)

var (
	// TargetAvailability is the fraction of targets whose latest probe
	// succeeded (0-1).
	TargetAvailability = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_target_availability_ratio",
			Help: "Fraction of targets whose latest probe succeeded (0-1), target: 0.99",
		},
	)

	// BreakerOpenRatio is the fraction of registered breakers currently
	// open (0-1).
	BreakerOpenRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_breaker_open_ratio",
			Help: "Fraction of registered circuit breakers open (0-1), budget: 0.10",
		},
	)

	// LastSweepDuration is the duration of the most recent sweep in
	// seconds.
	LastSweepDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_last_sweep_duration_seconds",
			Help: "Duration of the most recent probe sweep in seconds, target: 30",
		},
	)
)

// UpdateAvailability refreshes the availability gauge from sweep
// counts. A sweep with no targets leaves the gauge untouched.
func UpdateAvailability(succeeded, targets int) {
	if targets <= 0 {
		return
	}
	TargetAvailability.Set(float64(succeeded) / float64(targets))
}

// UpdateBreakerOpenRatio refreshes the open-breaker gauge. An empty
// registry reports zero.
func UpdateBreakerOpenRatio(open, total int) {
	if total <= 0 {
		BreakerOpenRatio.Set(0)
		return
	}
	BreakerOpenRatio.Set(float64(open) / float64(total))
}

// UpdateSweepDuration records the duration of the latest sweep.
func UpdateSweepDuration(seconds float64) {
	LastSweepDuration.Set(seconds)
}
