// Package logging configures structured logging for the prober.
//
// NewLogger builds the process-wide slog.Logger from the environment:
// LOG_LEVEL selects the level (debug, info, warn, error) and LOG_FORMAT
// switches between JSON (the default) and text output for local runs.
//
// WithRequestID scopes a logger to the request ID carried in a context,
// and WithFields attaches a fixed set of fields for long-lived loggers
// such as the one the sweep job runs under:
//
//	jobLogger := logging.WithFields(logger, map[string]any{
//		"job": "sweep",
//	})
package logging
