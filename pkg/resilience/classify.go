package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// retryable is the capability errors in this package implement to mark
// themselves retryable or not at construction time.
type retryable interface {
	Retryable() bool
}

// IsRetryable determines if an error is worth retrying.
//
// Errors carrying an explicit Retryable() capability are trusted as-is.
// For foreign errors it recognizes network timeouts, transient syscall
// errors, HTTP 408/429/5xx status codes and transient gRPC status
// codes. Context cancellation is never retryable: it means the caller
// gave up, not that the dependency failed. Unknown errors are not
// retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Tagged errors decide for themselves
	var tagged retryable
	if errors.As(err, &tagged) {
		return tagged.Retryable()
	}

	// Network errors (timeout)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Syscall errors
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	// HTTP status codes
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return transientStatusCode(httpErr.StatusCode)
	}

	// gRPC status codes from downstream clients
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
			return true
		default:
			return false
		}
	}

	return false
}

// transientStatusCode reports whether an HTTP status code signals a
// failure that may succeed on retry.
func transientStatusCode(code int) bool {
	// 5xx server errors are retryable
	if code >= 500 && code < 600 {
		return true
	}
	// 429 Too Many Requests is retryable
	if code == http.StatusTooManyRequests {
		return true
	}
	// 408 Request Timeout is retryable
	if code == http.StatusRequestTimeout {
		return true
	}
	return false
}
