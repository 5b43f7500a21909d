package config

import (
	"fmt"
	"log/slog"
	"time"

	"breakwater/pkg/resilience"
)

// ProberConfig holds the runtime configuration for the prober daemon:
// the sweep schedule, concurrency and rate bounds for outbound probes,
// the ops server settings and the breaker registry capacity.
//
// Configuration is loaded fail-open via LoadProberFromEnv: every field
// has a default that keeps the daemon operable, and invalid values fall
// back with a warning instead of aborting startup.
type ProberConfig struct {
	// CronSchedule is the five-field cron expression driving probe
	// sweeps.
	// Default: "* * * * *" (every minute)
	CronSchedule string

	// Timezone is the IANA timezone the cron schedule is evaluated in.
	// Default: "UTC"
	Timezone string

	// SweepTimeout bounds one whole sweep across all targets. A sweep
	// still running when the next one fires is skipped, so this must
	// stay below the schedule interval.
	// Default: 45 seconds
	SweepTimeout time.Duration

	// MaxConcurrentProbes caps the number of in-flight probes per
	// sweep.
	// Range: 1-64, default: 8
	MaxConcurrentProbes int

	// ProbeRateLimit is the sustained outbound probe rate in probes
	// per second, enforced by a shared token bucket.
	// Range: 1-1000, default: 10
	ProbeRateLimit int

	// ProbeRateBurst is the token bucket burst size.
	// Range: 1-1000, default: 20
	ProbeRateBurst int

	// OpsPort is the listen port for the ops HTTP server (metrics,
	// health, breaker administration).
	// Range: 1024-65535, default: 9090
	OpsPort int

	// OpsClientRateLimit is the per-client request rate on the ops
	// server in requests per second.
	// Range: 1-10000, default: 20
	OpsClientRateLimit int

	// OpsClientRateBurst is the per-client burst size on the ops
	// server.
	// Range: 1-10000, default: 40
	OpsClientRateBurst int

	// ProfilesPath points at the YAML file defining probe targets and
	// their resilience profiles. Empty means no file: the daemon
	// starts with no targets and only serves the ops surface.
	ProfilesPath string

	// MaxBreakers bounds the circuit breaker registry.
	// Range: 1-4096, default: resilience.DefaultMaxBreakers
	MaxBreakers int
}

// DefaultProberConfig returns a ProberConfig with production defaults:
// a sweep every minute, modest probe concurrency, and the standard
// exporter port for the ops server.
func DefaultProberConfig() ProberConfig {
	return ProberConfig{
		CronSchedule:        "* * * * *",
		Timezone:            "UTC",
		SweepTimeout:        45 * time.Second,
		MaxConcurrentProbes: 8,
		ProbeRateLimit:      10,
		ProbeRateBurst:      20,
		OpsPort:             9090,
		OpsClientRateLimit:  20,
		OpsClientRateBurst:  40,
		ProfilesPath:        "",
		MaxBreakers:         resilience.DefaultMaxBreakers,
	}
}

// Validate checks every field and returns all violations together, so
// an operator fixing a config sees the full list at once rather than
// one error per restart.
func (c *ProberConfig) Validate() error {
	var errs []error

	if err := ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}

	if err := ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}

	if err := ValidateDuration(c.SweepTimeout, 1*time.Second, 10*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("sweep timeout: %w", err))
	}

	if err := ValidateIntRange(c.MaxConcurrentProbes, 1, 64); err != nil {
		errs = append(errs, fmt.Errorf("max concurrent probes: %w", err))
	}

	if err := ValidateIntRange(c.ProbeRateLimit, 1, 1000); err != nil {
		errs = append(errs, fmt.Errorf("probe rate limit: %w", err))
	}

	if err := ValidateIntRange(c.ProbeRateBurst, 1, 1000); err != nil {
		errs = append(errs, fmt.Errorf("probe rate burst: %w", err))
	}

	if err := ValidateIntRange(c.OpsPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("ops port: %w", err))
	}

	if err := ValidateIntRange(c.OpsClientRateLimit, 1, 10000); err != nil {
		errs = append(errs, fmt.Errorf("ops client rate limit: %w", err))
	}

	if err := ValidateIntRange(c.OpsClientRateBurst, 1, 10000); err != nil {
		errs = append(errs, fmt.Errorf("ops client rate burst: %w", err))
	}

	if err := ValidateIntRange(c.MaxBreakers, 1, 4096); err != nil {
		errs = append(errs, fmt.Errorf("max breakers: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}

	return nil
}

// LoadProberFromEnv loads the prober configuration from environment
// variables with validation and fallback to defaults.
//
// Fail-open strategy:
//  1. Start from DefaultProberConfig
//  2. Overlay each field from its environment variable
//  3. On parse or validation failure: keep the default, log a warning,
//     count the fallback
//  4. Always return a usable configuration, never an error
//
// Environment variables:
//   - PROBE_CRON_SCHEDULE: five-field cron expression
//   - PROBER_TIMEZONE: IANA timezone name
//   - SWEEP_TIMEOUT: Go duration, 1s-10m
//   - PROBE_MAX_CONCURRENT: integer 1-64
//   - PROBE_RATE_LIMIT: probes/second, 1-1000
//   - PROBE_RATE_BURST: integer 1-1000
//   - OPS_PORT: integer 1024-65535
//   - OPS_CLIENT_RATE_LIMIT: requests/second, 1-10000
//   - OPS_CLIENT_RATE_BURST: integer 1-10000
//   - PROFILES_PATH: path to the probe profiles YAML file
//   - REGISTRY_MAX_BREAKERS: integer 1-4096
//
// A nil metrics disables fallback counting; warnings are still logged.
func LoadProberFromEnv(logger *slog.Logger, metrics *Metrics) ProberConfig {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := DefaultProberConfig()
	anyFallback := false

	note := func(field string, result LoadResult) {
		if !result.FallbackApplied {
			return
		}
		anyFallback = true
		if metrics != nil {
			metrics.RecordValidationError(field)
			metrics.RecordFallback(field)
		}
		for _, warning := range result.Warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	result := LoadEnvWithFallback("PROBE_CRON_SCHEDULE", cfg.CronSchedule, ValidateCronSchedule)
	cfg.CronSchedule = result.Value.(string)
	note("cron_schedule", result)

	result = LoadEnvWithFallback("PROBER_TIMEZONE", cfg.Timezone, ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	note("timezone", result)

	result = LoadEnvDuration("SWEEP_TIMEOUT", cfg.SweepTimeout, func(d time.Duration) error {
		return ValidateDuration(d, 1*time.Second, 10*time.Minute)
	})
	cfg.SweepTimeout = result.Value.(time.Duration)
	note("sweep_timeout", result)

	result = LoadEnvInt("PROBE_MAX_CONCURRENT", cfg.MaxConcurrentProbes, func(v int) error {
		return ValidateIntRange(v, 1, 64)
	})
	cfg.MaxConcurrentProbes = result.Value.(int)
	note("probe_max_concurrent", result)

	result = LoadEnvInt("PROBE_RATE_LIMIT", cfg.ProbeRateLimit, func(v int) error {
		return ValidateIntRange(v, 1, 1000)
	})
	cfg.ProbeRateLimit = result.Value.(int)
	note("probe_rate_limit", result)

	result = LoadEnvInt("PROBE_RATE_BURST", cfg.ProbeRateBurst, func(v int) error {
		return ValidateIntRange(v, 1, 1000)
	})
	cfg.ProbeRateBurst = result.Value.(int)
	note("probe_rate_burst", result)

	result = LoadEnvInt("OPS_PORT", cfg.OpsPort, func(v int) error {
		return ValidateIntRange(v, 1024, 65535)
	})
	cfg.OpsPort = result.Value.(int)
	note("ops_port", result)

	result = LoadEnvInt("OPS_CLIENT_RATE_LIMIT", cfg.OpsClientRateLimit, func(v int) error {
		return ValidateIntRange(v, 1, 10000)
	})
	cfg.OpsClientRateLimit = result.Value.(int)
	note("ops_client_rate_limit", result)

	result = LoadEnvInt("OPS_CLIENT_RATE_BURST", cfg.OpsClientRateBurst, func(v int) error {
		return ValidateIntRange(v, 1, 10000)
	})
	cfg.OpsClientRateBurst = result.Value.(int)
	note("ops_client_rate_burst", result)

	cfg.ProfilesPath = LoadEnvString("PROFILES_PATH", cfg.ProfilesPath)

	result = LoadEnvInt("REGISTRY_MAX_BREAKERS", cfg.MaxBreakers, func(v int) error {
		return ValidateIntRange(v, 1, 4096)
	})
	cfg.MaxBreakers = result.Value.(int)
	note("registry_max_breakers", result)

	if metrics != nil {
		metrics.SetFallbackActive(anyFallback)
		metrics.RecordLoadTimestamp()
	}

	return cfg
}
