// Package probe sweeps HTTP and gRPC targets through the resilience
// pipeline.
//
// Each target is probed via the resilience manager under the target's
// own timeout, retry and breaker configuration, so a flapping target
// trips its breaker exactly the way a real client of that dependency
// would, and the breaker state is observable on the ops surface.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"breakwater/internal/config"
	"breakwater/internal/observability/tracing"
	"breakwater/pkg/resilience"
)

const (
	userAgent = "breakwater-prober"

	// drainLimit caps how much of the response body is read before the
	// connection is released for reuse.
	drainLimit = 16 << 10
)

// Options tunes sweep concurrency and outbound request rate.
type Options struct {
	// MaxConcurrent bounds how many targets are probed at once.
	MaxConcurrent int

	// RatePerSecond and RateBurst shape the outbound request rate
	// across the whole sweep. A non-positive rate disables shaping.
	RatePerSecond int
	RateBurst     int
}

// Prober probes configured targets and records the outcomes.
type Prober struct {
	client        *http.Client
	manager       *resilience.Manager
	limiter       *rate.Limiter
	logger        *slog.Logger
	metrics       *Metrics
	maxConcurrent int
}

// SweepStats summarizes one sweep over the configured targets.
type SweepStats struct {
	Targets   int
	Succeeded int
	// Rejected counts probes fast-failed by an open breaker.
	Rejected int
	Failed   int
	Duration time.Duration
}

// New creates a prober. A nil client falls back to http.DefaultClient;
// metrics may be nil to disable recording.
func New(client *http.Client, manager *resilience.Manager, opts Options, logger *slog.Logger, metrics *Metrics) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}

	limit := rate.Inf
	burst := opts.RateBurst
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	return &Prober{
		client:        client,
		manager:       manager,
		limiter:       rate.NewLimiter(limit, burst),
		logger:        logger,
		metrics:       metrics,
		maxConcurrent: opts.MaxConcurrent,
	}
}

// Sweep probes every target once and returns aggregate counts. A probe
// failure never aborts the sweep; the error return is non-nil only
// when the context expired before all targets were probed.
func (p *Prober) Sweep(ctx context.Context, targets []config.ProbeTarget) (*SweepStats, error) {
	start := time.Now()

	ctx, span := tracing.GetTracer().Start(ctx, "probe.sweep",
		trace.WithAttributes(attribute.Int("sweep.targets", len(targets))))
	defer span.End()

	var mu sync.Mutex
	stats := &SweepStats{Targets: len(targets)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent)

	for _, target := range targets {
		g.Go(func() error {
			// Waiting fails only when the context dies; that aborts
			// the whole sweep, not just this target.
			if err := p.limiter.Wait(gctx); err != nil {
				mu.Lock()
				stats.Failed++
				mu.Unlock()
				p.metrics.RecordProbe(target.Name, "failure")
				return err
			}

			tctx, tspan := tracing.GetTracer().Start(gctx, "probe.target",
				trace.WithAttributes(attribute.String("probe.target", target.Name)))
			outcome := p.probe(tctx, target)
			tspan.SetAttributes(attribute.String("probe.outcome", outcome))
			tspan.End()

			mu.Lock()
			switch outcome {
			case "success":
				stats.Succeeded++
			case "rejected":
				stats.Rejected++
			default:
				stats.Failed++
			}
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	stats.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("sweep.succeeded", stats.Succeeded),
		attribute.Int("sweep.rejected", stats.Rejected),
		attribute.Int("sweep.failed", stats.Failed),
	)

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return stats, fmt.Errorf("sweep interrupted: %w", err)
	}
	return stats, nil
}

// probe runs a single target through the resilience pipeline and
// returns the outcome label.
func (p *Prober) probe(ctx context.Context, target config.ProbeTarget) string {
	op := p.request
	if target.Type == config.TargetTypeGRPC {
		op = p.grpcCheck
	}

	err := p.manager.Execute(ctx, target.Name, target.Resilience, func(ctx context.Context) error {
		return op(ctx, target)
	})

	outcome := outcomeLabel(err)
	p.metrics.RecordProbe(target.Name, outcome)
	p.metrics.SetTargetUp(target.Name, err == nil)

	if err != nil {
		p.logger.Warn("probe failed",
			slog.String("target", target.Name),
			slog.String("outcome", outcome),
			slog.Any("error", err))
	} else {
		p.logger.Debug("probe succeeded",
			slog.String("target", target.Name))
	}
	return outcome
}

// request performs the HTTP request and classifies the response so the
// retry layer sees transient and permanent failures correctly.
func (p *Prober) request(ctx context.Context, target config.ProbeTarget) error {
	method := target.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, target.URL, nil)
	if err != nil {
		return &resilience.ValidationError{Field: "url", Message: err.Error()}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request: %w", err)
	}
	defer resp.Body.Close()

	// Drain a bounded amount so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))

	if !statusAccepted(target.ExpectStatus, resp.StatusCode) {
		return resilience.NewExternalServiceError(target.Name, resp.StatusCode,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}

// statusAccepted reports whether the response status satisfies the
// target. An expectation of zero accepts any 2xx.
func statusAccepted(expect, got int) bool {
	if expect == 0 {
		return got >= 200 && got < 300
	}
	return got == expect
}

// outcomeLabel maps a pipeline error to the probe outcome. The labels
// match the outcomes the resilience metrics use for calls.
func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}

	var cbErr *resilience.CircuitBreakerError
	if errors.As(err, &cbErr) {
		return "rejected"
	}

	var exhausted *resilience.RetryExhaustedError
	if errors.As(err, &exhausted) {
		return "exhausted"
	}

	var te *resilience.TimeoutError
	if errors.As(err, &te) {
		return "timeout"
	}

	return "failure"
}
