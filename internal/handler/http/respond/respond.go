// Package respond provides helpers for writing JSON responses on the
// ops server, including error responses that never leak internal
// failure detail to callers.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"breakwater/pkg/resilience"
)

// JSON writes a JSON response with the given status code and data.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			// Headers are already sent, all we can do is log
			slog.Default().Error("failed to encode JSON response",
				slog.Int("status_code", code),
				slog.Any("error", err))
		}
	}
}

// Error writes a JSON error response carrying the error message as-is.
// Use SafeError for errors that may contain internal detail.
func Error(w http.ResponseWriter, code int, err error) {
	JSON(w, code, map[string]string{"error": err.Error()})
}

// SafeError writes a JSON error response, passing through messages that
// are safe to show callers and masking everything else.
//
// Safe errors are the caller-input kind from the resilience taxonomy:
// a *resilience.ValidationError describes what the caller sent, so its
// message goes out verbatim. Any other error on a 4xx gets the generic
// status text, and a 5xx is always masked as "internal server error"
// with the original logged.
func SafeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}

	var verr *resilience.ValidationError
	if code < 500 && errors.As(err, &verr) {
		JSON(w, code, map[string]string{"error": verr.Error()})
		return
	}

	if code < 500 {
		JSON(w, code, map[string]string{"error": http.StatusText(code)})
		return
	}

	slog.Default().Error("internal server error",
		slog.String("status", http.StatusText(code)),
		slog.Int("code", code),
		slog.Any("error", err))
	JSON(w, code, map[string]string{"error": "internal server error"})
}
