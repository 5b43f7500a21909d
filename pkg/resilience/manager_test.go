package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(ManagerConfig{})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return mgr
}

func TestManagerComposesLayers(t *testing.T) {
	mgr := newTestManager(t)

	retry := fastRetryConfig(2)
	cfg := Config{
		Timeout: &TimeoutConfig{Duration: time.Second},
		Retry:   &retry,
		Breaker: &BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     time.Second,
			MonitoringPeriod: time.Minute,
		},
	}

	var calls atomic.Int32
	err := mgr.Execute(context.Background(), "feeds", cfg, func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return &HTTPError{StatusCode: 502, Message: "bad gateway"}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Execute() error = %v, want nil", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("operation calls = %d, want 3", got)
	}
}

func TestManagerBreakerGatesExecution(t *testing.T) {
	mgr := newTestManager(t)

	cfg := Config{
		Breaker: &BreakerConfig{
			FailureThreshold: 1,
			ResetTimeout:     time.Minute,
			MonitoringPeriod: time.Minute,
		},
	}

	calls := 0
	_ = mgr.Execute(context.Background(), "db", cfg, func(ctx context.Context) error {
		calls++
		return errors.New("down")
	})

	err := mgr.Execute(context.Background(), "db", cfg, func(ctx context.Context) error {
		calls++
		return nil
	})

	var cbErr *CircuitBreakerError
	if !errors.As(err, &cbErr) {
		t.Fatalf("Execute() error = %v, want *CircuitBreakerError", err)
	}
	if cbErr.Name != "db" {
		t.Errorf("Name = %q, want %q", cbErr.Name, "db")
	}
	if calls != 1 {
		t.Errorf("operation calls = %d, want 1", calls)
	}
}

func TestManagerTimeoutBoundsEachAttempt(t *testing.T) {
	mgr := newTestManager(t)

	retry := fastRetryConfig(1)
	cfg := Config{
		Timeout: &TimeoutConfig{Duration: 20 * time.Millisecond},
		Retry:   &retry,
	}

	var calls atomic.Int32
	err := mgr.Execute(context.Background(), "slow", cfg, func(ctx context.Context) error {
		calls.Add(1)
		<-ctx.Done()
		return ctx.Err()
	})

	// Both attempts time out; the loop wraps the last timeout.
	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Execute() error = %v, want *RetryExhaustedError", err)
	}
	if exhausted.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", exhausted.Attempts)
	}
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Errorf("cause = %v, want *TimeoutError", exhausted.Err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("operation calls = %d, want 2", got)
	}
}

func TestManagerExhaustedRetriesOpenBreaker(t *testing.T) {
	mgr := newTestManager(t)

	retry := fastRetryConfig(2) // three attempts in total
	cfg := Config{
		Retry: &retry,
		Breaker: &BreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     time.Minute,
			MonitoringPeriod: time.Minute,
		},
	}

	calls := 0
	err := mgr.Execute(context.Background(), "openai", cfg, func(ctx context.Context) error {
		calls++
		return &HTTPError{StatusCode: 500, Message: "boom"}
	})

	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Execute() error = %v, want *RetryExhaustedError", err)
	}
	if calls != 3 {
		t.Errorf("operation calls = %d, want 3", calls)
	}

	// Every failed attempt counted toward the threshold, so a single
	// exhausted call is enough to open the circuit.
	sts := mgr.BreakerStatuses()
	if len(sts) != 1 || sts[0].State != StateOpen {
		t.Fatalf("BreakerStatuses() = %+v, want one open breaker", sts)
	}

	// The next call is rejected without running the operation.
	err = mgr.Execute(context.Background(), "openai", cfg, func(ctx context.Context) error {
		calls++
		return nil
	})
	var cbErr *CircuitBreakerError
	if !errors.As(err, &cbErr) {
		t.Fatalf("Execute() error = %v, want *CircuitBreakerError", err)
	}
	if calls != 3 {
		t.Errorf("operation calls = %d, want 3", calls)
	}
}

func TestManagerNoLayersPassthrough(t *testing.T) {
	mgr := newTestManager(t)

	calls := 0
	boom := errors.New("boom")
	err := mgr.Execute(context.Background(), "bare", Config{}, func(ctx context.Context) error {
		calls++
		return boom
	})

	if !errors.Is(err, boom) {
		t.Errorf("Execute() error = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("operation calls = %d, want 1", calls)
	}
}

func TestManagerRejectsInvalidConfig(t *testing.T) {
	mgr := newTestManager(t)

	cfg := Config{Retry: &RetryConfig{MaxRetries: -1}}
	calls := 0
	err := mgr.Execute(context.Background(), "bad", cfg, func(ctx context.Context) error {
		calls++
		return nil
	})

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Execute() error = %v, want *ValidationError", err)
	}
	if calls != 0 {
		t.Errorf("operation calls = %d, want 0", calls)
	}
	if IsRetryable(err) {
		t.Error("IsRetryable(validation error) = true, want false")
	}
}

func TestDoReturnsTypedValue(t *testing.T) {
	mgr := newTestManager(t)

	got, err := Do(context.Background(), mgr, "lookup", Config{}, func(ctx context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Errorf("Do() mismatch (-want +got):\n%s", diff)
	}

	zero, err := Do(context.Background(), mgr, "lookup", Config{}, func(ctx context.Context) ([]string, error) {
		return []string{"partial"}, errors.New("boom")
	})
	if err == nil {
		t.Fatal("Do() error = nil, want failure")
	}
	if zero != nil {
		t.Errorf("Do() = %v, want zero value on failure", zero)
	}
}

func TestManagerResetBreaker(t *testing.T) {
	mgr := newTestManager(t)
	cfg := Config{
		Breaker: &BreakerConfig{
			FailureThreshold: 1,
			ResetTimeout:     time.Minute,
			MonitoringPeriod: time.Minute,
		},
	}

	_ = mgr.Execute(context.Background(), "db", cfg, func(ctx context.Context) error {
		return errors.New("boom")
	})

	if ok := mgr.ResetBreaker("db"); !ok {
		t.Error("ResetBreaker(db) = false, want true")
	}
	sts := mgr.BreakerStatuses()
	if len(sts) != 1 || sts[0].State != StateClosed {
		t.Errorf("BreakerStatuses() = %+v, want one closed breaker", sts)
	}

	if ok := mgr.ResetBreaker("ghost"); ok {
		t.Error("ResetBreaker(ghost) = true, want false")
	}
}

func TestManagerResetAllBreakers(t *testing.T) {
	mgr := newTestManager(t)
	cfg := Config{
		Breaker: &BreakerConfig{
			FailureThreshold: 1,
			ResetTimeout:     time.Minute,
			MonitoringPeriod: time.Minute,
		},
	}
	fail := func(ctx context.Context) error { return errors.New("boom") }

	_ = mgr.Execute(context.Background(), "a", cfg, fail)
	_ = mgr.Execute(context.Background(), "b", cfg, fail)

	mgr.ResetAllBreakers()

	for _, st := range mgr.BreakerStatuses() {
		if st.State != StateClosed {
			t.Errorf("%s State = %v, want %v", st.Name, st.State, StateClosed)
		}
	}
}

func TestClassifyOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil is success", nil, "success"},
		{"breaker rejection", &CircuitBreakerError{Name: "x"}, "rejected"},
		{"exhausted retries", &RetryExhaustedError{Context: "x", Attempts: 2, Err: errors.New("boom")}, "exhausted"},
		{"exhausted wrapping timeout stays exhausted", &RetryExhaustedError{Context: "x", Attempts: 2, Err: &TimeoutError{Duration: time.Second}}, "exhausted"},
		{"timeout", &TimeoutError{Duration: time.Second}, "timeout"},
		{"other failure", errors.New("boom"), "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyOutcome(tt.err); got != tt.want {
				t.Errorf("classifyOutcome(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
