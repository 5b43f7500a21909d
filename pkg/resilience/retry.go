package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// WithRetry executes op with retry logic and exponential backoff. It
// returns the first successful result, or a *RetryExhaustedError
// wrapping the last failure once attempts run out or a non-retryable
// error is seen. The name identifies the operation in logs and errors.
func WithRetry[T any](ctx context.Context, name string, cfg RetryConfig, op Operation[T]) (T, error) {
	var result T
	r := newRetrier(name, cfg, nil, nil, nil)
	err := r.run(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// retrier drives the attempt loop for one logical operation.
type retrier struct {
	name    string
	cfg     RetryConfig
	cb      *CircuitBreaker // optional; consulted before each retry
	logger  *slog.Logger
	metrics Metrics
}

func newRetrier(name string, cfg RetryConfig, cb *CircuitBreaker, logger *slog.Logger, metrics Metrics) *retrier {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewNoOpMetrics()
	}
	return &retrier{
		name:    name,
		cfg:     cfg.withDefaults(),
		cb:      cb,
		logger:  logger,
		metrics: metrics,
	}
}

// run executes op at most MaxRetries+1 times.
//
// The first attempt always runs (the breaker, when present, gated the
// whole loop before it started). Retries consult the breaker again: if
// it opened in the meantime the loop aborts and the breaker's own
// rejection error surfaces unwrapped, so callers see the open circuit
// rather than an exhausted retry.
func (r *retrier) run(ctx context.Context, op func(context.Context) error) error {
	shouldRetry := r.cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = func(err error, _ int) bool { return IsRetryable(err) }
	}

	maxAttempts := r.cfg.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 && r.cb != nil && r.cb.State() == StateOpen {
			r.logger.Warn("retry aborted, circuit breaker open",
				slog.String("context", r.name),
				slog.Int("attempt", attempt))
			return r.cb.openError()
		}

		r.metrics.RecordRetryAttempt(r.name, attempt)
		lastErr = op(ctx)

		if lastErr == nil {
			if attempt > 1 {
				r.logger.Info("operation succeeded after retry",
					slog.String("context", r.name),
					slog.Int("attempt", attempt))
			}
			return nil
		}

		if !shouldRetry(lastErr, attempt) {
			r.logger.Warn("non-retryable error, aborting",
				slog.String("context", r.name),
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
			return &RetryExhaustedError{Context: r.name, Attempts: attempt, Err: lastErr}
		}

		// Don't wait after the last attempt
		if attempt == maxAttempts {
			break
		}

		delay := r.backoffDelay(attempt)
		r.metrics.RecordRetryDelay(r.name, delay)
		r.logger.Warn("operation failed, retrying",
			slog.String("context", r.name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		// Wait with context cancellation support
		select {
		case <-time.After(delay):
			// Continue to next attempt
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
	}

	r.logger.Warn("retries exhausted",
		slog.String("context", r.name),
		slog.Int("attempts", maxAttempts),
		slog.Any("error", lastErr))
	return &RetryExhaustedError{Context: r.name, Attempts: maxAttempts, Err: lastErr}
}

// backoffDelay computes the sleep before the attempt following the
// given one: exponential growth from the base delay plus proportional
// jitter, capped at the configured maximum.
func (r *retrier) backoffDelay(attempt int) time.Duration {
	backoff := float64(r.cfg.BaseDelay) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	if backoff >= float64(r.cfg.MaxDelay) {
		return r.cfg.MaxDelay
	}

	delay := addJitter(time.Duration(backoff), r.cfg.JitterFraction)
	if delay > r.cfg.MaxDelay {
		delay = r.cfg.MaxDelay
	}
	return delay
}

// addJitter adds random jitter to a duration to prevent thundering herd.
func addJitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}
	// #nosec G404 -- Using math/rand is acceptable for jitter calculation.
	// Cryptographic randomness is not required for retry backoff jitter.
	jitter := time.Duration(rand.Float64() * float64(duration) * jitterFraction)
	return duration + jitter
}
