// Package tracing provides OpenTelemetry tracing for the prober.
//
// The middleware extracts W3C Trace Context from incoming ops requests
// and opens a server span per request. GetTracer serves the rest of the
// process; the sweep loop uses it to nest one span per probed target
// under the sweep span.
//
// Example usage:
//
//	import "breakwater/internal/observability/tracing"
//
//	mux := http.NewServeMux()
//	mux.Handle("/resilience/breakers", breakersHandler)
//	handler := tracing.Middleware(mux)
//
//	func sweep(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "probe.sweep")
//	    defer span.End()
//	    // ... run probes ...
//	}
//
// Span export is left to the host process. Without a configured tracer
// provider spans are no-ops and the X-Trace-Id response header is
// omitted.
package tracing
