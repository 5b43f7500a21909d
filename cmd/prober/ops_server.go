package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"breakwater/internal/config"
	ophttp "breakwater/internal/handler/http"
	"breakwater/internal/handler/http/requestid"
	"breakwater/internal/observability/tracing"
	"breakwater/pkg/resilience"
)

// startOpsServer starts the ops HTTP server (metrics, health probes and
// breaker administration) in a background goroutine. The server shuts
// down gracefully when ctx is canceled.
func startOpsServer(
	ctx context.Context,
	logger *slog.Logger,
	manager *resilience.Manager,
	resMetrics *resilience.PrometheusMetrics,
	cfg config.ProberConfig,
	version string,
) *http.Server {
	mux := http.NewServeMux()
	ophttp.Register(mux, ophttp.Deps{
		Manager: manager,
		Metrics: ophttp.MetricsHandler(resMetrics.Registry()),
		Version: version,
	})

	limiter := ophttp.NewClientRateLimiter(cfg.OpsClientRateLimit, cfg.OpsClientRateBurst)
	handler := applyMiddleware(logger, mux, limiter)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.OpsPort),
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("ops server starting", slog.Int("port", cfg.OpsPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("ops server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("ops server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("ops server stopped")
		}
	}()

	return server
}

// applyMiddleware wraps the ops mux with the middleware chain.
// Request order: request ID, client rate limit, tracing, recovery,
// logging, body limit, metrics.
func applyMiddleware(logger *slog.Logger, handler http.Handler, limiter *ophttp.ClientRateLimiter) http.Handler {
	chain := handler

	// Apply in reverse order (innermost to outermost)
	chain = ophttp.MetricsMiddleware(chain)
	chain = ophttp.LimitRequestBody(1 << 16)(chain)
	chain = ophttp.Logging(logger)(chain)
	chain = ophttp.Recover(logger)(chain)
	chain = tracing.Middleware(chain)
	chain = limiter.Limit(chain)
	chain = requestid.Middleware(chain)

	return chain
}
