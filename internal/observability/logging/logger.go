package logging

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"

	"breakwater/internal/handler/http/requestid"
)

// NewLogger creates the process logger from the environment. Output is
// JSON unless LOG_FORMAT is "text"; the level comes from LOG_LEVEL.
// Source locations are attached when running at warn or error, where
// every line is worth the extra bytes.
func NewLogger() *slog.Logger {
	level := levelFromEnv()
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level >= slog.LevelWarn,
	}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// levelFromEnv parses LOG_LEVEL. Unknown values fall back to info.
func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID returns a logger carrying the request ID from the
// context, or the logger unchanged when the context has none.
func WithRequestID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	id := requestid.FromContext(ctx)
	if id == "" {
		return logger
	}
	return logger.With("request_id", id)
}

// WithFields returns a logger with additional fields attached in key
// order, so the same fields always produce the same line layout.
func WithFields(logger *slog.Logger, fields map[string]any) *slog.Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return logger.With(args...)
}
