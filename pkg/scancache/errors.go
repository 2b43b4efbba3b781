package scancache

import (
	"github.com/LavishGent/scancache/internal/types"
)

// CacheError represents a cache operation error.
type CacheError = types.CacheError

var (
	// ErrUnauthenticated indicates that no user was given.
	ErrUnauthenticated = types.ErrUnauthenticated
	// ErrNotFound indicates that an entry does not exist.
	ErrNotFound = types.ErrNotFound
	// ErrStorageFailure indicates that the local tier could not be read or written.
	ErrStorageFailure = types.ErrStorageFailure
	// ErrBackendFailure indicates that the remote tier failed.
	ErrBackendFailure = types.ErrBackendFailure
	// ErrDecompressionFailed indicates that a stored payload could not be decoded.
	ErrDecompressionFailed = types.ErrDecompressionFailed
	// ErrInvalidBarcode indicates that a barcode cannot be used as a cache key.
	ErrInvalidBarcode = types.ErrInvalidBarcode
	// ErrCircuitOpen indicates that the circuit breaker is open.
	ErrCircuitOpen = types.ErrCircuitOpen
	// ErrClosed indicates that the cache has been closed.
	ErrClosed = types.ErrClosed
	// ErrBulkheadFull indicates that the bulkhead is at capacity.
	ErrBulkheadFull = types.ErrBulkheadFull
	// ErrBulkheadTimeout indicates that the bulkhead acquisition timed out.
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
	// ErrShutdownTimeout indicates that Close gave up waiting for background work.
	ErrShutdownTimeout = types.ErrShutdownTimeout
)

// IsUnauthenticated returns true if the error is due to a missing user.
func IsUnauthenticated(err error) bool {
	return types.IsUnauthenticated(err)
}

// IsInvalidBarcode returns true if the error indicates an invalid barcode.
func IsInvalidBarcode(err error) bool {
	return types.IsInvalidBarcode(err)
}

// IsCircuitOpen returns true if the error indicates the circuit breaker is open.
func IsCircuitOpen(err error) bool {
	return types.IsCircuitOpen(err)
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}
