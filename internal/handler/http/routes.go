package http

import (
	"net/http"

	"breakwater/pkg/resilience"
)

// Deps carries the shared dependencies of the ops routes.
type Deps struct {
	Manager *resilience.Manager
	DB      Pinger       // optional database for health/readiness checks
	Metrics http.Handler // handler for GET /metrics, nil to skip mounting
	Version string
}

// Register mounts the ops surface on the given mux: health and
// readiness probes, the breaker observability and administration
// endpoints, and the Prometheus metrics endpoint.
func Register(mux *http.ServeMux, deps Deps) {
	mux.Handle("GET    /healthz", &HealthHandler{Manager: deps.Manager, DB: deps.DB, Version: deps.Version})
	mux.Handle("GET    /readyz", &ReadyHandler{Manager: deps.Manager, DB: deps.DB})
	mux.Handle("GET    /livez", &LiveHandler{})

	mux.Handle("GET    /resilience/breakers", &BreakersHandler{Manager: deps.Manager})
	mux.Handle("POST   /resilience/breakers/reset", &ResetAllBreakersHandler{Manager: deps.Manager})
	mux.Handle("POST   /resilience/breakers/{name}/reset", &ResetBreakerHandler{Manager: deps.Manager})

	if deps.Metrics != nil {
		mux.Handle("GET    /metrics", deps.Metrics)
	}
}
