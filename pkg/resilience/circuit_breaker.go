package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State represents the current state of a circuit breaker.
type State int

const (
	// StateClosed indicates the circuit is closed and calls are allowed.
	// This is the normal operating state; failures are tracked against
	// the monitoring window.
	StateClosed State = iota

	// StateOpen indicates the circuit is open due to excessive failures.
	// Calls fail fast without invoking the operation until the reset
	// timeout elapses.
	StateOpen

	// StateHalfOpen indicates the circuit is testing recovery. Exactly
	// one trial call is admitted; concurrent calls fail fast.
	StateHalfOpen
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Status is a read-only snapshot of one breaker for dashboards, health
// checks and tests.
type Status struct {
	Name        string
	State       State
	Failures    int
	NextAttempt *time.Time
	LastFailure *time.Time
}

// CircuitBreaker is a per-dependency state machine that fails fast once
// the dependency is deemed unhealthy.
//
// Failures are recorded as timestamps and counted against a trailing
// monitoring window; when the count reaches the configured threshold the
// circuit opens and calls are rejected until the reset timeout elapses.
// The Open to HalfOpen promotion is evaluated lazily at call time, so an
// idle breaker stays Open until someone actually calls it.
//
// A breaker is shared by pointer across every call using the same
// dependency name; all state is serialized by an internal mutex.
type CircuitBreaker struct {
	name    string
	cfg     BreakerConfig
	clock   Clock
	metrics Metrics
	logger  *slog.Logger

	mu            sync.Mutex
	state         State
	failures      []time.Time
	lastFailure   time.Time
	nextAttempt   time.Time
	trialInFlight bool
}

// NewCircuitBreaker creates a standalone breaker with default clock,
// metrics and logger. Most callers obtain breakers through a Registry
// or a Manager instead.
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	return newCircuitBreaker(name, cfg, nil, nil, nil)
}

func newCircuitBreaker(name string, cfg BreakerConfig, clock Clock, metrics Metrics, logger *slog.Logger) *CircuitBreaker {
	cfg = cfg.withDefaults()
	if clock == nil {
		clock = &SystemClock{}
	}
	if metrics == nil {
		metrics = NewNoOpMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &CircuitBreaker{
		name:    name,
		cfg:     cfg,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
		state:   StateClosed,
	}

	// Record initial state
	metrics.RecordCircuitState(name, StateClosed.String())

	return b
}

// Name returns the dependency name this breaker protects.
func (b *CircuitBreaker) Name() string {
	return b.name
}

// Execute runs op under the breaker.
//
// While Open with an unexpired reset timeout the call is rejected with
// a *CircuitBreakerError and op is never invoked. Otherwise op runs and
// its error, if any, is returned unchanged after the breaker updates
// its bookkeeping.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.beforeCall(); err != nil {
		b.metrics.RecordRejection(b.name)
		b.logger.Debug("circuit breaker rejected call",
			slog.String("name", b.name),
			slog.String("state", b.State().String()))
		return err
	}

	err := op(ctx)
	b.afterCall(err)
	return err
}

// beforeCall decides whether the call may proceed. It performs the lazy
// Open to HalfOpen promotion and reserves the half-open trial slot.
func (b *CircuitBreaker) beforeCall() error {
	b.mu.Lock()
	var notify func()
	var rejection *CircuitBreakerError

	now := b.clock.Now()
	switch b.state {
	case StateOpen:
		if now.Before(b.nextAttempt) {
			rejection = &CircuitBreakerError{Name: b.name, NextAttempt: b.nextAttempt}
		} else {
			// Reset timeout elapsed; admit exactly one trial call.
			notify = b.setStateLocked(StateHalfOpen)
			b.trialInFlight = true
		}
	case StateHalfOpen:
		if b.trialInFlight {
			rejection = &CircuitBreakerError{Name: b.name, NextAttempt: b.nextAttempt}
		} else {
			b.trialInFlight = true
		}
	default: // StateClosed
		b.pruneLocked(now)
	}
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
	if rejection != nil {
		return rejection
	}
	return nil
}

// afterCall applies the call outcome to the breaker state.
func (b *CircuitBreaker) afterCall(err error) {
	if err == nil {
		b.onSuccess()
		return
	}

	// A rejection produced by this same breaker (surfaced through a
	// nested retry loop) never reached the dependency, so it must not
	// feed the failure window.
	var cbErr *CircuitBreakerError
	if errors.As(err, &cbErr) && cbErr.Name == b.name {
		b.mu.Lock()
		b.trialInFlight = false
		b.mu.Unlock()
		return
	}

	b.onFailure(err)
}

// onSuccess clears the failure history and closes the circuit. A
// success is treated as proof of health regardless of the state it was
// observed in, including the half-open trial.
func (b *CircuitBreaker) onSuccess() {
	b.mu.Lock()
	b.failures = nil
	b.nextAttempt = time.Time{}
	b.trialInFlight = false
	notify := b.setStateLocked(StateClosed)
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// onFailure records the failure against the monitoring window and opens
// the circuit when the threshold is reached or the half-open trial
// failed.
func (b *CircuitBreaker) onFailure(err error) {
	b.mu.Lock()
	now := b.clock.Now()

	credit := failureCredit(err, b.cfg.FailureThreshold)
	for i := 0; i < credit; i++ {
		b.failures = append(b.failures, now)
	}
	b.lastFailure = now

	var notify func()
	switch b.state {
	case StateHalfOpen:
		// Trial failed; reopen and push the next attempt out.
		b.trialInFlight = false
		b.nextAttempt = now.Add(b.cfg.ResetTimeout)
		notify = b.setStateLocked(StateOpen)
	case StateClosed:
		b.pruneLocked(now)
		if len(b.failures) >= b.cfg.FailureThreshold {
			b.nextAttempt = now.Add(b.cfg.ResetTimeout)
			notify = b.setStateLocked(StateOpen)
		}
	default: // StateOpen: a concurrent call already opened the circuit
	}
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// failureCredit converts one observed error into the number of failures
// recorded against the window. A retry-exhausted error already
// represents every attempt its loop made against the dependency, so
// each attempt counts, capped at the threshold.
func failureCredit(err error, threshold int) int {
	var exhausted *RetryExhaustedError
	if errors.As(err, &exhausted) && exhausted.Attempts > 1 {
		if exhausted.Attempts >= threshold {
			return threshold
		}
		return exhausted.Attempts
	}
	return 1
}

// setStateLocked transitions the breaker and returns the notification
// to run once the lock is released, or nil when nothing changed.
// Must be called with b.mu held.
func (b *CircuitBreaker) setStateLocked(to State) func() {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	return func() {
		b.notifyStateChange(from, to)
	}
}

func (b *CircuitBreaker) notifyStateChange(from, to State) {
	b.metrics.RecordCircuitState(b.name, to.String())
	b.metrics.RecordStateChange(b.name, from.String(), to.String())

	b.logger.Warn("circuit breaker state changed",
		slog.String("name", b.name),
		slog.String("previous_state", from.String()),
		slog.String("new_state", to.String()),
		slog.Duration("reset_timeout", b.cfg.ResetTimeout))

	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

// pruneLocked drops failure timestamps that fell out of the trailing
// monitoring window. Timestamps are appended in order, so pruning only
// trims a prefix. Must be called with b.mu held.
func (b *CircuitBreaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.MonitoringPeriod)
	idx := 0
	for idx < len(b.failures) && !b.failures[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		b.failures = append(b.failures[:0], b.failures[idx:]...)
	}
}

// countInWindowLocked counts failures inside the monitoring window
// without mutating the slice. Must be called with b.mu held.
func (b *CircuitBreaker) countInWindowLocked(now time.Time) int {
	cutoff := now.Add(-b.cfg.MonitoringPeriod)
	n := 0
	for _, ts := range b.failures {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

// State returns the current state. It never mutates the breaker; the
// lazy Open to HalfOpen promotion happens only inside Execute.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen returns true if the circuit is currently open.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateOpen
}

// Status returns a read-only snapshot of the breaker. The reported
// failure count covers only timestamps inside the current monitoring
// window.
func (b *CircuitBreaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	st := Status{
		Name:     b.name,
		State:    b.state,
		Failures: b.countInWindowLocked(now),
	}
	if b.state != StateClosed && !b.nextAttempt.IsZero() {
		t := b.nextAttempt
		st.NextAttempt = &t
	}
	if !b.lastFailure.IsZero() {
		t := b.lastFailure
		st.LastFailure = &t
	}
	return st
}

// Reset forces the breaker closed and clears all recorded failures.
// This is an administrative override for operators and tests.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	b.failures = nil
	b.lastFailure = time.Time{}
	b.nextAttempt = time.Time{}
	b.trialInFlight = false
	notify := b.setStateLocked(StateClosed)
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// openError builds the rejection error for the current open window.
// Used by the retry loop when it finds the breaker open between
// attempts.
func (b *CircuitBreaker) openError() *CircuitBreakerError {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &CircuitBreakerError{Name: b.name, NextAttempt: b.nextAttempt}
}
