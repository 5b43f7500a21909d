package resilience

import (
	"fmt"
	"time"
)

// ValidationError indicates a caller or input mistake. It is never
// retried: repeating the call with the same input cannot succeed.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Retryable reports whether the error is worth retrying. Validation
// errors never are.
func (e *ValidationError) Retryable() bool {
	return false
}

// TimeoutError indicates an attempt exceeded its deadline. Duration is
// the configured deadline; it is zero when the call was rejected before
// starting because the configured timeout was non-positive.
type TimeoutError struct {
	Duration time.Duration
}

// Error returns a formatted error message for the timeout.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation timed out after %s", e.Duration)
}

// Retryable reports whether the error is worth retrying. Timeouts are
// transient by default.
func (e *TimeoutError) Retryable() bool {
	return true
}

// CircuitBreakerError indicates the named breaker fast-failed the call
// without invoking the operation. NextAttempt tells callers when the
// breaker will admit a trial call again, usable as a retry-after hint.
type CircuitBreakerError struct {
	Name        string
	NextAttempt time.Time
}

// Error returns a formatted error message for the rejection.
func (e *CircuitBreakerError) Error() string {
	if e.NextAttempt.IsZero() {
		return fmt.Sprintf("circuit breaker '%s' is open", e.Name)
	}
	return fmt.Sprintf("circuit breaker '%s' is open, next attempt at %s",
		e.Name, e.NextAttempt.Format(time.RFC3339))
}

// Retryable reports whether the error is worth retrying. Retrying
// against a known-unhealthy dependency is pointless, so no.
func (e *CircuitBreakerError) Retryable() bool {
	return false
}

// RetryExhaustedError is the terminal signal of a retry loop: either
// every allowed attempt failed, or the first error was classified
// non-retryable. The original cause is always attached.
type RetryExhaustedError struct {
	Context  string
	Attempts int
	Err      error
}

// Error returns a formatted error message including the attempt count
// and the final underlying error.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempt(s): %v",
		e.Context, e.Attempts, e.Err)
}

// Unwrap returns the final underlying error.
func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the error is worth retrying. The loop
// already gave up; terminal.
func (e *RetryExhaustedError) Retryable() bool {
	return false
}

// ExternalServiceError is a generic downstream failure surfaced by a
// wrapped operation. Transient is fixed at construction time so the
// retry classifier never has to inspect message text.
type ExternalServiceError struct {
	Service    string
	StatusCode int
	Transient  bool
	Err        error
}

// NewExternalServiceError builds an ExternalServiceError from an HTTP
// status code, deriving Transient from the status class (408, 429 and
// 5xx are transient).
func NewExternalServiceError(service string, statusCode int, err error) *ExternalServiceError {
	return &ExternalServiceError{
		Service:    service,
		StatusCode: statusCode,
		Transient:  transientStatusCode(statusCode),
		Err:        err,
	}
}

// Error returns a formatted error message for the downstream failure.
func (e *ExternalServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("external service '%s' failed with status %d: %v",
			e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("external service '%s' failed: %v", e.Service, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure was classified transient when
// the error was constructed.
func (e *ExternalServiceError) Retryable() bool {
	return e.Transient
}

// HTTPError represents an HTTP error with status code. It carries no
// retryable flag of its own; the classifier decides from the code.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}
