package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"breakwater/pkg/resilience"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "/healthz"},
		{"/resilience/breakers", "/resilience/breakers"},
		{"/resilience/breakers/reset", "/resilience/breakers/reset"},
		{"/resilience/breakers/payments-api/reset", "/resilience/breakers/{name}/reset"},
		{"/resilience/breakers/a/b/reset", "/resilience/breakers/{name}/reset"},
		{"/resilience/breakers/payments-api", "/resilience/breakers/payments-api"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func findMetric(t *testing.T, families []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestMetricsMiddleware_RecordsRequest(t *testing.T) {
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/resilience/breakers/payments-api/reset", nil)
	handler.ServeHTTP(w, req)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	mf := findMetric(t, families, "ops_http_requests_total")
	if mf == nil {
		t.Fatal("ops_http_requests_total not found")
	}

	var found bool
	for _, m := range mf.GetMetric() {
		labels := map[string]string{}
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		if labels["method"] == http.MethodPost &&
			labels["path"] == "/resilience/breakers/{name}/reset" &&
			labels["status"] == "404" {
			found = true
			if m.GetCounter().GetValue() < 1 {
				t.Errorf("counter = %v, want >= 1", m.GetCounter().GetValue())
			}
		}
	}
	if !found {
		t.Error("no sample with normalized path label")
	}

	if findMetric(t, families, "ops_http_request_duration_seconds") == nil {
		t.Error("ops_http_request_duration_seconds not found")
	}
}

func TestMetricsHandler_MergesRegistries(t *testing.T) {
	resMetrics := resilience.NewPrometheusMetrics()

	handler := MetricsHandler(resMetrics.Registry())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	// One family from each side of the merge.
	if !strings.Contains(body, "ops_http_requests_in_flight") {
		t.Error("default registry metrics missing from /metrics")
	}
	if !strings.Contains(body, "resilience_registry_size") {
		t.Error("resilience registry metrics missing from /metrics")
	}
}
