package resilience

import (
	"context"
	"errors"
	"net"

	"github.com/LavishGent/scancache/internal/types"
)

var (
	ErrCircuitOpen     = types.ErrCircuitOpen
	ErrBulkheadFull    = types.ErrBulkheadFull
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
)

// IsBulkheadError returns true if the error is a bulkhead error.
func IsBulkheadError(err error) bool {
	return errors.Is(err, types.ErrBulkheadFull) || errors.Is(err, types.ErrBulkheadTimeout)
}

// IsRetryable determines if an error is transient and worth retrying.
func IsRetryable(err error) bool {
	if !types.IsRetryable(err) {
		return false
	}

	// A non-timeout network error (bad address, refused TLS) will not heal by retrying.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return true
}

// countsAsFailure reports whether err should move the circuit toward open.
// Misses, missing sessions, bad input and caller cancellation say nothing
// about backend health.
func countsAsFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrUnauthenticated),
		errors.Is(err, types.ErrInvalidBarcode),
		errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}
