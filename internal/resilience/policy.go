package resilience

import (
	"context"

	"github.com/LavishGent/scancache/internal/config"
)

// Executor runs remote tier operations under a resilience policy.
type Executor interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
	IsCircuitOpen() bool
	CircuitState() State
	SetOnCircuitStateChange(fn func(from, to State))
	BulkheadStats() (active, queued int, rejected int64)
}

// Call runs fn under e and returns its result. The result of a failed
// call is the zero value.
func Call[T any](ctx context.Context, e Executor, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := e.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Policy combines a bulkhead, a retry policy and a circuit breaker. Any of
// them may be disabled in configuration, in which case it is skipped.
type Policy struct {
	circuitBreaker *CircuitBreaker
	retry          *RetryPolicy
	bulkhead       *Bulkhead
}

// NewPolicy creates a policy guarding the named backend.
func NewPolicy(name string, cfg *config.Config) *Policy {
	p := &Policy{}
	if cfg.CircuitBreaker.Enabled {
		p.circuitBreaker = NewCircuitBreaker(name, cfg.CircuitBreaker)
	}
	if cfg.Retry.Enabled {
		p.retry = NewRetryPolicy(cfg.Retry)
	}
	if cfg.Bulkhead.Enabled {
		p.bulkhead = NewBulkhead(cfg.Bulkhead)
	}
	return p
}

// Execute runs fn as Bulkhead -> Retry -> Circuit Breaker -> fn, so every
// retry attempt is counted by the circuit breaker on its own.
func (p *Policy) Execute(ctx context.Context, fn func(context.Context) error) error {
	guarded := fn
	if p.circuitBreaker != nil {
		guarded = func(ctx context.Context) error {
			return p.circuitBreaker.Execute(func() error { return fn(ctx) })
		}
	}

	attempt := guarded
	if p.retry != nil {
		attempt = func(ctx context.Context) error {
			return p.retry.Execute(ctx, guarded)
		}
	}

	if p.bulkhead != nil {
		return p.bulkhead.Execute(ctx, attempt)
	}
	return attempt(ctx)
}

// CircuitBreaker returns the circuit breaker, or nil when disabled.
func (p *Policy) CircuitBreaker() *CircuitBreaker {
	return p.circuitBreaker
}

// IsCircuitOpen returns true if the circuit breaker is open.
func (p *Policy) IsCircuitOpen() bool {
	return p.circuitBreaker != nil && p.circuitBreaker.IsOpen()
}

// CircuitState returns the current circuit breaker state.
func (p *Policy) CircuitState() State {
	if p.circuitBreaker == nil {
		return StateClosed
	}
	return p.circuitBreaker.State()
}

// SetOnCircuitStateChange sets a callback for circuit state changes.
func (p *Policy) SetOnCircuitStateChange(fn func(from, to State)) {
	if p.circuitBreaker != nil {
		p.circuitBreaker.SetOnStateChange(fn)
	}
}

// BulkheadStats returns bulkhead statistics.
func (p *Policy) BulkheadStats() (active, queued int, rejected int64) {
	if p.bulkhead == nil {
		return 0, 0, 0
	}
	return p.bulkhead.ActiveCount(), p.bulkhead.QueuedCount(), p.bulkhead.RejectedCount()
}

// DisabledPolicy runs operations directly.
type DisabledPolicy struct{}

// NewDisabledPolicy creates a disabled policy.
func NewDisabledPolicy() *DisabledPolicy {
	return &DisabledPolicy{}
}

func (p *DisabledPolicy) Execute(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (p *DisabledPolicy) IsCircuitOpen() bool                             { return false }
func (p *DisabledPolicy) CircuitState() State                             { return StateClosed }
func (p *DisabledPolicy) SetOnCircuitStateChange(fn func(from, to State)) {}
func (p *DisabledPolicy) BulkheadStats() (active, queued int, rejected int64) {
	return 0, 0, 0
}

var (
	_ Executor = (*Policy)(nil)
	_ Executor = (*DisabledPolicy)(nil)
)
