package retry

import (
	"context"
	"errors"
	"fmt"
)

// Shared error taxonomy for outbound calls. Every service client wraps its
// failures in one of these sentinels so a single retry policy can classify
// them.
var (
	// ErrRateLimited indicates the service rejected the call for rate
	// limiting (HTTP 429). Retryable.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable indicates a transient service fault (HTTP 5xx,
	// timeout). Retryable.
	ErrUnavailable = errors.New("service unavailable")

	// ErrNetwork indicates a connectivity failure before any response was
	// received. Retryable.
	ErrNetwork = errors.New("network error")

	// ErrAuth indicates missing or invalid credentials. Terminal.
	ErrAuth = errors.New("authentication error")

	// ErrBadRequest indicates the request itself is malformed and will
	// never succeed. Terminal.
	ErrBadRequest = errors.New("bad request")
)

// Retryable reports whether the error is worth retrying. Context
// cancellation and deadline expiry are never retryable; auth and
// bad-request faults abort immediately without consuming budget.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrBadRequest) {
		return false
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrNetwork)
}

// HTTPError classifies an HTTP status code into the shared taxonomy.
// Statuses below 400 return nil.
func HTTPError(status int) error {
	switch {
	case status < 400:
		return nil
	case status == 401 || status == 403:
		return fmt.Errorf("%w: status %d", ErrAuth, status)
	case status == 429:
		return fmt.Errorf("%w: status %d", ErrRateLimited, status)
	case status >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, status)
	default:
		return fmt.Errorf("%w: status %d", ErrBadRequest, status)
	}
}
