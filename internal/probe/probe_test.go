package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breakwater/internal/config"
	"breakwater/pkg/resilience"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProber(t *testing.T, opts Options) (*Prober, *resilience.Manager) {
	t.Helper()
	mgr, err := resilience.NewManager(resilience.ManagerConfig{Logger: testLogger()})
	require.NoError(t, err)
	return New(nil, mgr, opts, testLogger(), nil), mgr
}

func TestSweep_AllHealthy(t *testing.T) {
	var sawUserAgent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawUserAgent.Store(r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prober, _ := newTestProber(t, Options{MaxConcurrent: 4})
	targets := []config.ProbeTarget{
		{Name: "alpha", URL: srv.URL},
		{Name: "beta", URL: srv.URL, Method: http.MethodHead},
	}

	stats, err := prober.Sweep(context.Background(), targets)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Targets)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 0, stats.Rejected)
	assert.Equal(t, "breakwater-prober", sawUserAgent.Load())
}

func TestSweep_EmptyTargets(t *testing.T) {
	prober, _ := newTestProber(t, Options{})

	stats, err := prober.Sweep(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Targets)
}

func TestSweep_FailingTargetCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	prober, _ := newTestProber(t, Options{})
	targets := []config.ProbeTarget{{Name: "alpha", URL: srv.URL}}

	stats, err := prober.Sweep(context.Background(), targets)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
}

func TestSweep_ExpectStatusHonored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	prober, _ := newTestProber(t, Options{})
	targets := []config.ProbeTarget{
		{Name: "wants-404", URL: srv.URL, ExpectStatus: http.StatusNotFound},
		{Name: "wants-2xx", URL: srv.URL},
	}

	stats, err := prober.Sweep(context.Background(), targets)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
}

func TestSweep_RetriesTransientFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prober, _ := newTestProber(t, Options{})
	targets := []config.ProbeTarget{{
		Name: "flaky",
		URL:  srv.URL,
		Resilience: resilience.Config{
			Retry: &resilience.RetryConfig{
				MaxRetries: 2,
				BaseDelay:  time.Millisecond,
				MaxDelay:   5 * time.Millisecond,
				Multiplier: 2.0,
			},
		},
	}}

	stats, err := prober.Sweep(context.Background(), targets)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, int32(2), hits.Load())
}

func TestSweep_OpenBreakerRejectsNextSweep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	prober, mgr := newTestProber(t, Options{})
	targets := []config.ProbeTarget{{
		Name: "down-hard",
		URL:  srv.URL,
		Resilience: resilience.Config{
			Breaker: &resilience.BreakerConfig{
				FailureThreshold: 1,
				ResetTimeout:     time.Hour,
				MonitoringPeriod: time.Hour,
			},
		},
	}}

	stats, err := prober.Sweep(context.Background(), targets)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	statuses := mgr.BreakerStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, resilience.StateOpen, statuses[0].State)

	// The open breaker now fast-fails the probe without touching the
	// target.
	stats, err = prober.Sweep(context.Background(), targets)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, 0, stats.Failed)
}

func TestSweep_TimeoutCountsAsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prober, _ := newTestProber(t, Options{})
	targets := []config.ProbeTarget{{
		Name: "slow",
		URL:  srv.URL,
		Resilience: resilience.Config{
			Timeout: &resilience.TimeoutConfig{Duration: 10 * time.Millisecond},
		},
	}}

	stats, err := prober.Sweep(context.Background(), targets)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
}

func TestSweep_BoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	var inflight, peak int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inflight--
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prober, _ := newTestProber(t, Options{MaxConcurrent: 2})

	var targets []config.ProbeTarget
	for i := 0; i < 6; i++ {
		targets = append(targets, config.ProbeTarget{
			Name: fmt.Sprintf("target-%d", i),
			URL:  srv.URL,
		})
	}

	stats, err := prober.Sweep(context.Background(), targets)
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Succeeded)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
}

func TestSweep_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prober, _ := newTestProber(t, Options{})
	targets := []config.ProbeTarget{
		{Name: "alpha", URL: "http://127.0.0.1:0"},
		{Name: "beta", URL: "http://127.0.0.1:0"},
	}

	stats, err := prober.Sweep(ctx, targets)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, stats.Failed)
}

func TestStatusAccepted(t *testing.T) {
	tests := []struct {
		expect int
		got    int
		want   bool
	}{
		{0, 200, true},
		{0, 204, true},
		{0, 299, true},
		{0, 300, false},
		{0, 404, false},
		{404, 404, true},
		{404, 200, false},
		{503, 503, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusAccepted(tt.expect, tt.got),
			"statusAccepted(%d, %d)", tt.expect, tt.got)
	}
}

func TestOutcomeLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "success"},
		{"breaker open", &resilience.CircuitBreakerError{Name: "x"}, "rejected"},
		{"exhausted", &resilience.RetryExhaustedError{Context: "x", Attempts: 3, Err: errors.New("boom")}, "exhausted"},
		{"timeout", &resilience.TimeoutError{Duration: time.Second}, "timeout"},
		{"wrapped timeout", fmt.Errorf("wrap: %w", &resilience.TimeoutError{Duration: time.Second}), "timeout"},
		{"exhausted wrapping timeout", &resilience.RetryExhaustedError{Context: "x", Attempts: 2, Err: &resilience.TimeoutError{Duration: time.Second}}, "exhausted"},
		{"plain", errors.New("boom"), "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outcomeLabel(tt.err))
		})
	}
}
