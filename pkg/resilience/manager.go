package resilience

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the package-level tracer instance for protected calls.
var tracer = otel.Tracer("breakwater/resilience")

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// MaxBreakers bounds the breaker registry.
	// Default: 128
	MaxBreakers int

	// BreakerDefaults applies to breakers created without an explicit
	// configuration.
	BreakerDefaults BreakerConfig

	// Clock is used for all time decisions. Nil falls back to the
	// system clock.
	Clock Clock

	// Metrics receives every recorded observation. Nil disables
	// metrics.
	Metrics Metrics

	// Logger receives structured logs. Nil falls back to slog.Default.
	Logger *slog.Logger
}

// Manager composes the protection layers around operations and owns
// the circuit breaker registry.
//
// The layers nest as CircuitBreaker(Retry(Timeout(op))): the breaker
// gates the whole retry loop, so an open circuit rejects the call
// before any attempt runs, and each individual attempt is bounded by
// the per-attempt timeout. Every layer is optional; a nil sub-config
// in Config disables it.
type Manager struct {
	registry *Registry
	clock    Clock
	metrics  Metrics
	logger   *slog.Logger
}

// NewManager creates a manager with the given configuration.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Clock == nil {
		cfg.Clock = &SystemClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewNoOpMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	registry, err := NewRegistry(RegistryConfig{
		MaxBreakers: cfg.MaxBreakers,
		Defaults:    cfg.BreakerDefaults,
		Clock:       cfg.Clock,
		Metrics:     cfg.Metrics,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Manager{
		registry: registry,
		clock:    cfg.Clock,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}, nil
}

// Execute runs op under the layers selected by cfg. The name
// identifies the protected dependency: calls sharing a name share one
// circuit breaker, and the name labels logs, metrics and errors.
//
// The returned error is the terminal pipeline error: the operation's
// own error when no layer intervened, a *TimeoutError for an expired
// attempt, a *RetryExhaustedError once attempts run out, or a
// *CircuitBreakerError when the breaker rejected the call.
func (m *Manager) Execute(ctx context.Context, name string, cfg Config, op func(context.Context) error) error {
	if err := cfg.Validate(); err != nil {
		return &ValidationError{Field: "config", Message: err.Error()}
	}

	ctx, span := tracer.Start(ctx, "resilience.execute",
		trace.WithAttributes(attribute.String("resilience.context", name)))
	defer span.End()

	var cb *CircuitBreaker
	if cfg.Breaker != nil {
		cb = m.registry.GetOrCreate(name, *cfg.Breaker)
	}

	wrapped := op

	if cfg.Timeout != nil {
		timeout := *cfg.Timeout
		inner := wrapped
		wrapped = func(ctx context.Context) error {
			err := execTimeout(ctx, timeout.Duration, timeout.OnTimeout, inner)
			var te *TimeoutError
			if errors.As(err, &te) {
				m.metrics.RecordTimeout(name)
			}
			return err
		}
	}

	if cfg.Retry != nil {
		r := newRetrier(name, *cfg.Retry, cb, m.logger, m.metrics)
		inner := wrapped
		wrapped = func(ctx context.Context) error {
			return r.run(ctx, inner)
		}
	}

	start := m.clock.Now()
	var err error
	if cb != nil {
		err = cb.Execute(ctx, wrapped)
	} else {
		err = wrapped(ctx)
	}
	duration := m.clock.Now().Sub(start)

	outcome := classifyOutcome(err)
	m.metrics.RecordCall(name, outcome, duration)

	if err != nil {
		span.SetAttributes(
			attribute.Bool("error", true),
			attribute.String("resilience.outcome", outcome))
	}
	return err
}

// classifyOutcome maps a terminal pipeline error to its outcome label.
// Order matters: an exhausted retry may wrap a timeout, and the
// wrapping layer is the outcome.
func classifyOutcome(err error) string {
	if err == nil {
		return "success"
	}

	var cbErr *CircuitBreakerError
	if errors.As(err, &cbErr) {
		return "rejected"
	}

	var exhausted *RetryExhaustedError
	if errors.As(err, &exhausted) {
		return "exhausted"
	}

	var te *TimeoutError
	if errors.As(err, &te) {
		return "timeout"
	}

	return "failure"
}

// Do runs a typed operation through the manager and returns its value
// on success. It is the generic companion to Manager.Execute.
func Do[T any](ctx context.Context, mgr *Manager, name string, cfg Config, op Operation[T]) (T, error) {
	var result T
	err := mgr.Execute(ctx, name, cfg, func(ctx context.Context) error {
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

// BreakerStatuses returns a read-only snapshot of every breaker in the
// registry, sorted by name. The read never changes breaker state or
// registry recency.
func (m *Manager) BreakerStatuses() []Status {
	return m.registry.Statuses()
}

// ResetBreaker forces the named breaker closed and reports whether the
// name was registered. Resetting an unknown name is a no-op.
func (m *Manager) ResetBreaker(name string) bool {
	ok := m.registry.Reset(name)
	if ok {
		m.logger.Info("circuit breaker reset",
			slog.String("name", name))
	}
	return ok
}

// ResetAllBreakers forces every registered breaker closed.
func (m *Manager) ResetAllBreakers() {
	m.registry.ResetAll()
	m.logger.Info("all circuit breakers reset")
}

// Registry exposes the underlying breaker registry for callers that
// manage breakers directly.
func (m *Manager) Registry() *Registry {
	return m.registry
}
