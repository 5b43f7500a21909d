package resilience

import (
	"fmt"
	"time"
)

// TimeoutConfig bounds the duration of a single attempt.
type TimeoutConfig struct {
	// Duration is the per-attempt deadline. A non-positive value fails
	// the call immediately without invoking the operation.
	Duration time.Duration

	// OnTimeout, when non-nil, is invoked once when the deadline fires.
	// It is a notification hook only; it has no cancellation effect.
	OnTimeout func()
}

// RetryConfig holds the configuration for the retry loop.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt, so
	// the operation runs at most MaxRetries+1 times.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries, jitter included.
	MaxDelay time.Duration

	// Multiplier is the multiplier for exponential backoff.
	Multiplier float64

	// JitterFraction is the fraction of the backoff to add as random
	// jitter (0.0 to 1.0).
	JitterFraction float64

	// ShouldRetry classifies an error after a failed attempt. When nil,
	// IsRetryable is used and the attempt number is ignored.
	ShouldRetry func(err error, attempt int) bool
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c RetryConfig) withDefaults() RetryConfig {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 1 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	return c
}

// Validate checks if the RetryConfig is valid.
func (c RetryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("MaxRetries must be non-negative, got %d", c.MaxRetries)
	}
	if c.BaseDelay < 0 {
		return fmt.Errorf("BaseDelay must be non-negative, got %s", c.BaseDelay)
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("MaxDelay must be non-negative, got %s", c.MaxDelay)
	}
	if c.Multiplier < 0 {
		return fmt.Errorf("Multiplier must be non-negative, got %g", c.Multiplier)
	}
	if c.JitterFraction < 0 || c.JitterFraction > 1.0 {
		return fmt.Errorf("JitterFraction must be in [0, 1], got %g", c.JitterFraction)
	}
	return nil
}

// BreakerConfig holds the configuration for a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of failures inside the monitoring
	// window required to open the circuit.
	// Default: 5
	FailureThreshold int

	// ResetTimeout is the duration the circuit stays open before a
	// half-open trial call is admitted.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// MonitoringPeriod is the trailing window inside which failures are
	// counted toward the threshold.
	// Default: 60 seconds
	MonitoringPeriod time.Duration

	// OnStateChange, when non-nil, is invoked after every state
	// transition, outside the breaker's lock.
	OnStateChange func(name string, from, to State)
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.MonitoringPeriod <= 0 {
		c.MonitoringPeriod = 60 * time.Second
	}
	return c
}

// isZero reports whether no field was set, meaning registry defaults
// should apply.
func (c BreakerConfig) isZero() bool {
	return c.FailureThreshold == 0 &&
		c.ResetTimeout == 0 &&
		c.MonitoringPeriod == 0 &&
		c.OnStateChange == nil
}

// Validate checks if the BreakerConfig is valid.
func (c BreakerConfig) Validate() error {
	if c.FailureThreshold < 0 {
		return fmt.Errorf("FailureThreshold must be non-negative, got %d", c.FailureThreshold)
	}
	if c.ResetTimeout < 0 {
		return fmt.Errorf("ResetTimeout must be non-negative, got %s", c.ResetTimeout)
	}
	if c.MonitoringPeriod < 0 {
		return fmt.Errorf("MonitoringPeriod must be non-negative, got %s", c.MonitoringPeriod)
	}
	return nil
}

// Config selects the protection layers for one call. Each sub-config is
// optional; a nil field disables that layer.
type Config struct {
	// Timeout bounds each attempt. Nil disables the timeout layer.
	Timeout *TimeoutConfig

	// Retry repeats failed attempts with backoff. Nil disables retries.
	Retry *RetryConfig

	// Breaker enables the named circuit breaker, created on first use
	// through the manager's registry. Nil disables the breaker.
	Breaker *BreakerConfig
}

// Validate checks every present sub-config.
func (c Config) Validate() error {
	if c.Retry != nil {
		if err := c.Retry.Validate(); err != nil {
			return fmt.Errorf("retry: %w", err)
		}
	}
	if c.Breaker != nil {
		if err := c.Breaker.Validate(); err != nil {
			return fmt.Errorf("breaker: %w", err)
		}
	}
	return nil
}

// DefaultRetryConfig returns a general-purpose retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		BaseDelay:      1 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// DefaultBreakerConfig returns a general-purpose breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		MonitoringPeriod: 60 * time.Second,
	}
}

// AIProviderProfile returns a full pipeline tuned for AI model provider
// calls: long deadlines, conservative retries due to cost, and a
// patient breaker because provider outages tend to last minutes.
func AIProviderProfile() Config {
	return Config{
		Timeout: &TimeoutConfig{Duration: 60 * time.Second},
		Retry: &RetryConfig{
			MaxRetries:     2,
			BaseDelay:      2 * time.Second,
			MaxDelay:       10 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
		},
		Breaker: &BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     60 * time.Second,
			MonitoringPeriod: 120 * time.Second,
		},
	}
}

// ExportAPIProfile returns a full pipeline tuned for third-party export
// APIs: moderate deadlines and an aggressive retry schedule for
// transient network issues.
func ExportAPIProfile() Config {
	return Config{
		Timeout: &TimeoutConfig{Duration: 15 * time.Second},
		Retry: &RetryConfig{
			MaxRetries:     3,
			BaseDelay:      1 * time.Second,
			MaxDelay:       30 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
		},
		Breaker: &BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			MonitoringPeriod: 60 * time.Second,
		},
	}
}

// DatabaseProfile returns a full pipeline tuned for database
// operations: short deadlines and fast retries for transient
// connection issues.
func DatabaseProfile() Config {
	return Config{
		Timeout: &TimeoutConfig{Duration: 5 * time.Second},
		Retry: &RetryConfig{
			MaxRetries:     2,
			BaseDelay:      100 * time.Millisecond,
			MaxDelay:       1 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
		},
		Breaker: &BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			MonitoringPeriod: 60 * time.Second,
		},
	}
}
