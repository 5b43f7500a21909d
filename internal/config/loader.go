// Package config provides environment and file based configuration for
// the prober daemon, built around a fail-open loading strategy: a bad
// value never stops startup, it falls back to a safe default and
// surfaces as a warning plus a Prometheus counter.
package config

import (
	"fmt"
	"os"
	"time"
)

// LoadResult is the outcome of loading a single configuration value.
//
// Fields:
//   - Value: the loaded value, or the default when fallback was applied
//   - Warnings: one human-readable message per fallback
//   - FallbackApplied: true when the default replaced an invalid value
//
// Every Load* helper returns one of these so callers can treat all
// configuration fields uniformly: read Value, log Warnings, count
// fallbacks.
//
// Example:
//
//	result := LoadEnvDuration("SWEEP_TIMEOUT", 45*time.Second, ValidatePositiveDuration)
//	if result.FallbackApplied {
//	    for _, w := range result.Warnings {
//	        logger.Warn("configuration fallback", slog.String("warning", w))
//	    }
//	}
//	timeout := result.Value.(time.Duration)
type LoadResult struct {
	Value           any
	Warnings        []string
	FallbackApplied bool
}

// LoadEnvString loads a string from an environment variable, returning
// the default when the variable is unset or empty. No validation is
// applied; use LoadEnvWithFallback when the value must be checked.
//
// Example:
//
//	path := LoadEnvString("PROFILES_PATH", "")
func LoadEnvString(envKey, defaultValue string) string {
	value := os.Getenv(envKey)
	if value == "" {
		return defaultValue
	}
	return value
}

// LoadEnvWithFallback loads a string from an environment variable and
// validates it, falling back to the default on failure.
//
// Loading behavior:
//  1. Read the environment variable
//  2. Unset or empty: use the default, no warning
//  3. Set: run the validator (nil validator skips validation)
//  4. Validation failure: use the default and record a warning
//
// It never returns an error; invalid input degrades to the default.
//
// Example:
//
//	result := LoadEnvWithFallback("PROBE_CRON_SCHEDULE", "* * * * *", ValidateCronSchedule)
//	schedule := result.Value.(string)
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) LoadResult {
	value := os.Getenv(envKey)

	if value == "" {
		return LoadResult{Value: defaultValue}
	}

	if validator != nil {
		if err := validator(value); err != nil {
			warning := fmt.Sprintf(
				"Invalid %s='%s': %v, falling back to default '%s'",
				envKey, value, err, defaultValue,
			)
			return LoadResult{
				Value:           defaultValue,
				Warnings:        []string{warning},
				FallbackApplied: true,
			}
		}
	}

	return LoadResult{Value: value}
}

// LoadEnvDuration loads a time.Duration from an environment variable
// with parsing, validation and fallback to the default on any failure.
//
// The variable must hold a Go duration string ("500ms", "45s", "5m").
// Parse and validation failures both degrade to the default with a
// warning; the function never returns an error.
//
// Example:
//
//	result := LoadEnvDuration("SWEEP_TIMEOUT", 45*time.Second, func(d time.Duration) error {
//	    return ValidateDuration(d, time.Second, 10*time.Minute)
//	})
//	timeout := result.Value.(time.Duration)
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) LoadResult {
	valueStr := os.Getenv(envKey)

	if valueStr == "" {
		return LoadResult{Value: defaultValue}
	}

	parsed, err := time.ParseDuration(valueStr)
	if err != nil {
		warning := fmt.Sprintf(
			"Invalid %s='%s': %v, falling back to default '%v'",
			envKey, valueStr, err, defaultValue,
		)
		return LoadResult{
			Value:           defaultValue,
			Warnings:        []string{warning},
			FallbackApplied: true,
		}
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			warning := fmt.Sprintf(
				"Invalid %s='%s': %v, falling back to default '%v'",
				envKey, valueStr, err, defaultValue,
			)
			return LoadResult{
				Value:           defaultValue,
				Warnings:        []string{warning},
				FallbackApplied: true,
			}
		}
	}

	return LoadResult{Value: parsed}
}

// LoadEnvInt loads an integer from an environment variable with
// parsing, validation and fallback to the default on any failure.
//
// Example:
//
//	result := LoadEnvInt("PROBE_MAX_CONCURRENT", 8, func(v int) error {
//	    return ValidateIntRange(v, 1, 64)
//	})
//	parallelism := result.Value.(int)
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) LoadResult {
	valueStr := os.Getenv(envKey)

	if valueStr == "" {
		return LoadResult{Value: defaultValue}
	}

	var parsed int
	if _, err := fmt.Sscanf(valueStr, "%d", &parsed); err != nil {
		warning := fmt.Sprintf(
			"Invalid %s='%s': invalid integer format, falling back to default '%d'",
			envKey, valueStr, defaultValue,
		)
		return LoadResult{
			Value:           defaultValue,
			Warnings:        []string{warning},
			FallbackApplied: true,
		}
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			warning := fmt.Sprintf(
				"Invalid %s='%s': %v, falling back to default '%d'",
				envKey, valueStr, err, defaultValue,
			)
			return LoadResult{
				Value:           defaultValue,
				Warnings:        []string{warning},
				FallbackApplied: true,
			}
		}
	}

	return LoadResult{Value: parsed}
}

// LoadEnvBool loads a boolean from an environment variable, falling
// back to the default on any value outside the accepted set.
//
// Accepted values:
//   - true:  "1", "t", "T", "true", "TRUE", "True"
//   - false: "0", "f", "F", "false", "FALSE", "False"
//
// Example:
//
//	result := LoadEnvBool("OPS_TRACING_ENABLED", true)
//	enabled := result.Value.(bool)
func LoadEnvBool(envKey string, defaultValue bool) LoadResult {
	valueStr := os.Getenv(envKey)

	if valueStr == "" {
		return LoadResult{Value: defaultValue}
	}

	var parsed bool
	switch valueStr {
	case "1", "t", "T", "true", "TRUE", "True":
		parsed = true
	case "0", "f", "F", "false", "FALSE", "False":
		parsed = false
	default:
		warning := fmt.Sprintf(
			"Invalid %s='%s': invalid boolean format, expected 'true' or 'false', falling back to default '%t'",
			envKey, valueStr, defaultValue,
		)
		return LoadResult{
			Value:           defaultValue,
			Warnings:        []string{warning},
			FallbackApplied: true,
		}
	}

	return LoadResult{Value: parsed}
}
