package types

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated     = errors.New("scancache: no authenticated user")
	ErrNotFound            = errors.New("scancache: entry not found")
	ErrStorageFailure      = errors.New("scancache: local storage failure")
	ErrBackendFailure      = errors.New("scancache: remote backend failure")
	ErrDecompressionFailed = errors.New("scancache: decompression failed")
	ErrInvalidBarcode      = errors.New("scancache: invalid barcode")
	ErrCircuitOpen         = errors.New("scancache: circuit breaker open")
	ErrClosed              = errors.New("scancache: manager closed")
	ErrBulkheadFull        = errors.New("scancache: bulkhead at capacity")
	ErrBulkheadTimeout     = errors.New("scancache: bulkhead timeout")
	ErrShutdownTimeout     = errors.New("scancache: shutdown timeout waiting for background operations")
)

// CacheError records the operation, barcode and tier a failure happened on.
type CacheError struct {
	Op   string
	Key  string
	Tier string
	Err  error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("scancache %s on %s [%s]: %v", e.Op, e.Tier, e.Key, e.Err)
	}
	return fmt.Sprintf("scancache %s on %s: %v", e.Op, e.Tier, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

func NewCacheError(op, key, tier string, err error) *CacheError {
	return &CacheError{
		Op:   op,
		Key:  key,
		Tier: tier,
		Err:  err,
	}
}

// BackendError wraps err so that it matches both ErrBackendFailure and the cause.
func BackendError(op, key string, err error) *CacheError {
	return NewCacheError(op, key, TierRemote, errors.Join(ErrBackendFailure, err))
}

// StorageError wraps err so that it matches both ErrStorageFailure and the cause.
func StorageError(op, key string, err error) *CacheError {
	return NewCacheError(op, key, TierLocal, errors.Join(ErrStorageFailure, err))
}

func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// IsRetryable returns true if a remote operation that failed with err may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	// A miss is an answer, not a failure
	if IsNotFound(err) {
		return false
	}
	// No session will appear by retrying
	if IsUnauthenticated(err) {
		return false
	}
	if IsCircuitOpen(err) || errors.Is(err, ErrBulkheadFull) || errors.Is(err, ErrBulkheadTimeout) {
		return false
	}
	if errors.Is(err, ErrClosed) || errors.Is(err, ErrInvalidBarcode) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
