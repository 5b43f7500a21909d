package resilience

import "time"

// NoOpMetrics implements the Metrics interface with no-op implementations.
//
// This implementation is useful for:
// - Testing environments where metrics are not needed
// - Disabling metrics collection (e.g., development mode)
// - Benchmarking resilience primitives without metrics overhead
//
// All methods are no-ops and have minimal performance impact.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new NoOpMetrics instance.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

// RecordCall is a no-op implementation.
func (m *NoOpMetrics) RecordCall(name, outcome string, duration time.Duration) {
	// No-op
}

// RecordRejection is a no-op implementation.
func (m *NoOpMetrics) RecordRejection(name string) {
	// No-op
}

// RecordCircuitState is a no-op implementation.
func (m *NoOpMetrics) RecordCircuitState(name, state string) {
	// No-op
}

// RecordStateChange is a no-op implementation.
func (m *NoOpMetrics) RecordStateChange(name, from, to string) {
	// No-op
}

// RecordRetryAttempt is a no-op implementation.
func (m *NoOpMetrics) RecordRetryAttempt(name string, attempt int) {
	// No-op
}

// RecordRetryDelay is a no-op implementation.
func (m *NoOpMetrics) RecordRetryDelay(name string, delay time.Duration) {
	// No-op
}

// RecordTimeout is a no-op implementation.
func (m *NoOpMetrics) RecordTimeout(name string) {
	// No-op
}

// SetRegistrySize is a no-op implementation.
func (m *NoOpMetrics) SetRegistrySize(count int) {
	// No-op
}

// RecordEviction is a no-op implementation.
func (m *NoOpMetrics) RecordEviction(name string) {
	// No-op
}
