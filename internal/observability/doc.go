// Package observability groups the prober's telemetry concerns.
//
// Subpackages:
//   - logging: slog configuration plus request- and job-scoped loggers
//   - tracing: OpenTelemetry middleware for the ops server and the
//     tracer used to wrap each sweep in spans
//   - slo: service level gauges for the probed fleet (availability,
//     open-breaker ratio, sweep duration)
//
// There is no code at this level; import the subpackages directly:
//
//	import "breakwater/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("prober started")
//	}
package observability
