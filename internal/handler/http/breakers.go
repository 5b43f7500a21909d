package http

import (
	"fmt"
	"net/http"
	"time"

	"breakwater/internal/handler/http/respond"
	"breakwater/pkg/resilience"
)

// BreakerStatusResponse is the JSON shape of one breaker snapshot.
type BreakerStatusResponse struct {
	Name        string     `json:"name"`
	State       string     `json:"state"`
	Failures    int        `json:"failures"`
	NextAttempt *time.Time `json:"next_attempt,omitempty"`
	LastFailure *time.Time `json:"last_failure,omitempty"`
}

// BreakerListResponse is the JSON document for GET /resilience/breakers.
type BreakerListResponse struct {
	Breakers []BreakerStatusResponse `json:"breakers"`
	Count    int                     `json:"count"`
}

// BreakersHandler serves GET /resilience/breakers: a snapshot of every
// breaker in the registry, sorted by name. Reading the snapshot never
// changes breaker state or registry recency.
type BreakersHandler struct {
	Manager *resilience.Manager
}

func (h *BreakersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	statuses := h.Manager.BreakerStatuses()

	breakers := make([]BreakerStatusResponse, 0, len(statuses))
	for _, st := range statuses {
		breakers = append(breakers, BreakerStatusResponse{
			Name:        st.Name,
			State:       st.State.String(),
			Failures:    st.Failures,
			NextAttempt: st.NextAttempt,
			LastFailure: st.LastFailure,
		})
	}

	respond.JSON(w, http.StatusOK, BreakerListResponse{
		Breakers: breakers,
		Count:    len(breakers),
	})
}

// ResetBreakerHandler serves POST /resilience/breakers/{name}/reset:
// the administrative escape hatch that forces one breaker closed, for
// when an operator knows a dependency has recovered and does not want
// to wait out the reset timeout.
type ResetBreakerHandler struct {
	Manager *resilience.Manager
}

func (h *ResetBreakerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		respond.SafeError(w, http.StatusBadRequest,
			&resilience.ValidationError{Field: "name", Message: "cannot be empty"})
		return
	}

	if !h.Manager.ResetBreaker(name) {
		respond.Error(w, http.StatusNotFound, fmt.Errorf("breaker '%s' not found", name))
		return
	}

	respond.JSON(w, http.StatusOK, map[string]string{
		"status": "reset",
		"name":   name,
	})
}

// ResetAllBreakersHandler serves POST /resilience/breakers/reset. It
// forces every registered breaker closed.
type ResetAllBreakersHandler struct {
	Manager *resilience.Manager
}

func (h *ResetAllBreakersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	count := len(h.Manager.BreakerStatuses())
	h.Manager.ResetAllBreakers()

	respond.JSON(w, http.StatusOK, map[string]any{
		"status": "reset",
		"count":  count,
	})
}
