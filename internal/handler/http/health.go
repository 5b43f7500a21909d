// Package http provides the ops HTTP surface for the prober daemon:
// liveness and readiness probes, circuit breaker observability and
// administration endpoints, Prometheus metrics, and the middleware
// stack in front of them.
package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"breakwater/internal/handler/http/respond"
	"breakwater/pkg/resilience"
)

// Pinger is the subset of *sql.DB the health checks need. The database
// is optional; a nil Pinger skips the check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthResponse is the JSON document for GET /healthz.
type HealthResponse struct {
	Status    string                 `json:"status"`    // "healthy", "degraded" or "unhealthy"
	Timestamp string                 `json:"timestamp"` // ISO 8601
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the status of a single health check item.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthHandler serves GET /healthz.
//
// It reports process health with per-check detail. Open circuit
// breakers mark the response "degraded", not "unhealthy": an open
// breaker means a probed dependency is down, which is the prober doing
// its job, not a reason to restart it. Only a failing local check
// (the database, when configured) makes the process unhealthy.
type HealthHandler struct {
	Manager *resilience.Manager
	DB      Pinger
	Version string
}

// ServeHTTP runs the health checks and writes the aggregate status:
// 200 for healthy or degraded, 503 for unhealthy.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus)
	status := "healthy"

	breakerCheck := h.checkBreakers()
	checks["breakers"] = breakerCheck
	if breakerCheck.Status == "degraded" {
		status = "degraded"
	}

	if h.DB != nil {
		dbCheck := h.checkDatabase(ctx)
		checks["database"] = dbCheck
		if dbCheck.Status == "unhealthy" {
			status = "unhealthy"
		}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
}

// checkBreakers summarizes the breaker registry. Any breaker away from
// closed degrades the check.
func (h *HealthHandler) checkBreakers() CheckStatus {
	statuses := h.Manager.BreakerStatuses()

	var open, halfOpen []string
	for _, st := range statuses {
		switch st.State {
		case resilience.StateOpen:
			open = append(open, st.Name)
		case resilience.StateHalfOpen:
			halfOpen = append(halfOpen, st.Name)
		}
	}

	details := map[string]any{
		"total":     len(statuses),
		"open":      len(open),
		"half_open": len(halfOpen),
	}
	if len(open) > 0 {
		details["open_names"] = open
	}

	if len(open) > 0 || len(halfOpen) > 0 {
		return CheckStatus{
			Status:  "degraded",
			Message: "one or more circuit breakers are not closed",
			Details: details,
		}
	}

	return CheckStatus{
		Status:  "healthy",
		Details: details,
	}
}

// checkDatabase pings the configured database.
func (h *HealthHandler) checkDatabase(ctx context.Context) CheckStatus {
	if err := h.DB.PingContext(ctx); err != nil {
		return CheckStatus{
			Status:  "unhealthy",
			Message: err.Error(),
		}
	}
	return CheckStatus{Status: "healthy"}
}

// ReadyHandler serves GET /readyz.
//
// Readiness is stricter than health: traffic should not be routed at a
// prober whose breakers are open, because every protected call would
// fail fast. The checks run in parallel and the first failure decides.
type ReadyHandler struct {
	Manager *resilience.Manager
	DB      Pinger
}

// ServeHTTP returns 200 when every check passes, 503 with the failure
// reason otherwise.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for _, st := range h.Manager.BreakerStatuses() {
			if st.State == resilience.StateOpen {
				return fmt.Errorf("circuit breaker '%s' is open", st.Name)
			}
		}
		return nil
	})

	if h.DB != nil {
		g.Go(func() error {
			if err := h.DB.PingContext(ctx); err != nil {
				return fmt.Errorf("database not ready: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": err.Error(),
		})
		return
	}

	respond.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// LiveHandler serves GET /livez. It only proves the process responds.
type LiveHandler struct{}

// ServeHTTP always returns 200 OK.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("alive")); err != nil {
		log.Printf("livez: failed to write response: %v", err)
	}
}
