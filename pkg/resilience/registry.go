package resilience

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxBreakers is the registry capacity used when none is
// configured.
const DefaultMaxBreakers = 128

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// MaxBreakers bounds the number of breakers held at once. When the
	// registry is full, registering a new name evicts the least
	// recently used breaker.
	// Default: 128
	MaxBreakers int

	// Defaults is the breaker configuration applied when GetOrCreate is
	// called with a zero config.
	Defaults BreakerConfig

	// Clock is shared by every breaker the registry creates.
	Clock Clock

	// Metrics is shared by every breaker the registry creates.
	Metrics Metrics

	// Logger is shared by every breaker the registry creates.
	Logger *slog.Logger
}

// Registry is a bounded, name-keyed collection of circuit breakers.
//
// Breakers are created on first use and shared afterwards: every call
// protecting the same dependency name observes the same breaker state.
// Capacity is enforced with LRU eviction so unbounded name sets (one
// breaker per tenant, one per target URL) cannot grow memory without
// limit. Lookups count as use.
type Registry struct {
	mu       sync.Mutex
	cache    *lru.Cache[string, *CircuitBreaker]
	defaults BreakerConfig
	clock    Clock
	metrics  Metrics
	logger   *slog.Logger
}

// NewRegistry creates a registry with the given configuration.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.MaxBreakers <= 0 {
		cfg.MaxBreakers = DefaultMaxBreakers
	}
	if cfg.Clock == nil {
		cfg.Clock = &SystemClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewNoOpMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Registry{
		defaults: cfg.Defaults.withDefaults(),
		clock:    cfg.Clock,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}

	cache, err := lru.NewWithEvict[string, *CircuitBreaker](cfg.MaxBreakers, r.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create breaker cache: %w", err)
	}
	r.cache = cache

	return r, nil
}

// onEvict runs inside cache operations while r.mu is held, so it must
// not touch the registry itself.
func (r *Registry) onEvict(name string, _ *CircuitBreaker) {
	r.metrics.RecordEviction(name)
	r.logger.Warn("circuit breaker evicted from registry",
		slog.String("name", name))
}

// GetOrCreate returns the breaker registered under name, creating it
// with cfg on first use. A zero cfg falls back to the registry
// defaults. The access marks the breaker as most recently used; when a
// creation overflows the capacity, the least recently used existing
// entry is evicted, never the one just created.
func (r *Registry) GetOrCreate(name string, cfg BreakerConfig) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.cache.Get(name); ok {
		return cb
	}

	if cfg.isZero() {
		cfg = r.defaults
	}
	cb := newCircuitBreaker(name, cfg, r.clock, r.metrics, r.logger)
	r.cache.Add(name, cb)
	r.metrics.SetRegistrySize(r.cache.Len())
	return cb
}

// Get returns the breaker registered under name, or nil when the name
// is unknown. A hit marks the breaker as most recently used.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.cache.Get(name); ok {
		return cb
	}
	return nil
}

// Remove drops the breaker registered under name. Removing an unknown
// name is a no-op. Calls already holding the removed breaker finish
// against it harmlessly; the next GetOrCreate starts fresh.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cache.Remove(name) {
		r.metrics.SetRegistrySize(r.cache.Len())
	}
}

// Len returns the number of breakers currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}

// Statuses returns a snapshot of every registered breaker, sorted by
// name. The read does not disturb the recency order used for eviction.
func (r *Registry) Statuses() []Status {
	breakers := r.snapshot()

	statuses := make([]Status, 0, len(breakers))
	for _, cb := range breakers {
		statuses = append(statuses, cb.Status())
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

// Reset forces the named breaker closed and reports whether the name
// was registered. Resetting an unknown name is a no-op.
func (r *Registry) Reset(name string) bool {
	r.mu.Lock()
	cb, ok := r.cache.Peek(name)
	r.mu.Unlock()

	if !ok {
		return false
	}
	cb.Reset()
	return true
}

// ResetAll forces every registered breaker closed.
func (r *Registry) ResetAll() {
	for _, cb := range r.snapshot() {
		cb.Reset()
	}
}

// snapshot collects the registered breakers via Peek so recency order
// is left untouched.
func (r *Registry) snapshot() []*CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := r.cache.Keys()
	breakers := make([]*CircuitBreaker, 0, len(keys))
	for _, k := range keys {
		if cb, ok := r.cache.Peek(k); ok {
			breakers = append(breakers, cb)
		}
	}
	return breakers
}
