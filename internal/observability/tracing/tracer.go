package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// scopeName is the instrumentation scope reported on every span.
const scopeName = "breakwater"

// GetTracer returns a tracer bound to the current global provider.
// Resolving the provider per call means spans respect a provider
// installed after this package was initialized.
func GetTracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(scopeName)
}
