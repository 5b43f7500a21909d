package resilience

import (
	"context"
	"time"
)

// Operation is a unit of work executed under resilience protection.
// The context carries the per-attempt deadline when a timeout is
// configured; cooperative operations should honor it.
type Operation[T any] func(ctx context.Context) (T, error)

// Clock provides an abstraction for time operations to enable testing.
//
// This interface allows for dependency injection of time functions,
// making it easy to test time-dependent behavior with fake clocks.
type Clock interface {
	// Now returns the current time.
	//
	// Production implementations should return time.Now().
	// Test implementations can return fixed or controlled times.
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}

// Metrics defines the interface for recording resilience metrics.
//
// Implementations can use Prometheus, StatsD, or custom metrics systems.
// All methods must be safe for concurrent use.
type Metrics interface {
	// RecordCall records a completed protected call.
	//
	// Parameters:
	//   - name: Context name of the protected dependency
	//   - outcome: Terminal outcome ("success", "failure", "timeout",
	//     "rejected", "exhausted")
	//   - duration: Wall-clock duration of the whole pipeline
	RecordCall(name, outcome string, duration time.Duration)

	// RecordRejection records a call fast-failed by an open circuit
	// breaker without invoking the operation.
	RecordRejection(name string)

	// RecordCircuitState records the current state of a circuit breaker.
	//
	// Parameters:
	//   - name: Context name of the protected dependency
	//   - state: Circuit state ("closed", "open", "half-open")
	RecordCircuitState(name, state string)

	// RecordStateChange records a circuit breaker state transition.
	RecordStateChange(name, from, to string)

	// RecordRetryAttempt records one executed attempt inside a retry loop.
	RecordRetryAttempt(name string, attempt int)

	// RecordRetryDelay records the backoff delay scheduled before the
	// next attempt.
	RecordRetryDelay(name string, delay time.Duration)

	// RecordTimeout records an attempt that exceeded its deadline.
	RecordTimeout(name string)

	// SetRegistrySize records the current number of breakers held by
	// the registry.
	SetRegistrySize(count int)

	// RecordEviction records that a breaker was evicted from the
	// registry to make room for a new entry.
	RecordEviction(name string)
}
