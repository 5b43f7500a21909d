package resilience

import (
	"context"
	"errors"
	"time"
)

// WithTimeout races op against a deadline of d and returns op's result
// when it settles first, or a *TimeoutError when the deadline fires
// first. A non-positive d fails immediately with a zero-duration
// *TimeoutError without invoking op.
//
// The operation receives a child context that is cancelled when the
// deadline fires, so cooperative operations can abort early. The
// framework itself never waits for a late operation: after a timeout
// the goroutine running op finishes detached and its result is
// discarded. onTimeout, when non-nil, is invoked once as a pure
// notification before the error is returned.
//
// Cancellation of the parent context surfaces as the parent's error,
// not as a *TimeoutError.
func WithTimeout[T any](ctx context.Context, d time.Duration, onTimeout func(), op Operation[T]) (T, error) {
	var result T
	err := execTimeout(ctx, d, onTimeout, func(ctx context.Context) error {
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

// execTimeout is the error-only core of WithTimeout, shared with the
// manager's pipeline assembly.
func execTimeout(ctx context.Context, d time.Duration, onTimeout func(), op func(context.Context) error) error {
	if d <= 0 {
		return &TimeoutError{Duration: 0}
	}

	// The child context carries the deadline and releases its timer on
	// every exit path via cancel.
	attemptCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	// Buffered so the operation goroutine can always deliver its result
	// and exit, even when nobody is waiting anymore.
	done := make(chan error, 1)
	go func() {
		done <- op(attemptCtx)
	}()

	select {
	case err := <-done:
		// A cooperative operation may observe the expired deadline and
		// return before this select does. Normalize that to the same
		// timeout error the slow path produces.
		if err != nil && errors.Is(err, context.DeadlineExceeded) &&
			attemptCtx.Err() != nil && ctx.Err() == nil {
			if onTimeout != nil {
				onTimeout()
			}
			return &TimeoutError{Duration: d}
		}
		return err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			// The caller gave up; not a deadline of ours.
			return err
		}
		if onTimeout != nil {
			onTimeout()
		}
		return &TimeoutError{Duration: d}
	}
}
