package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LavishGent/scancache/internal/config"
	"github.com/LavishGent/scancache/internal/types"
)

func testPolicyConfig() *config.Config {
	cfg := config.ForTesting()
	cfg.CircuitBreaker = config.CircuitBreakerConfig{
		Enabled:             true,
		FailureThreshold:    3,
		SuccessThreshold:    1,
		OpenDuration:        time.Hour,
		HalfOpenMaxRequests: 1,
	}
	cfg.Retry = config.RetryConfig{
		Enabled:        true,
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1,
	}
	cfg.Bulkhead = config.BulkheadConfig{
		Enabled:        true,
		MaxConcurrent:  4,
		MaxQueue:       4,
		AcquireTimeout: 50 * time.Millisecond,
	}
	return cfg
}

func TestNewPolicy(t *testing.T) {
	p := NewPolicy("remote", testPolicyConfig())
	if p.CircuitBreaker() == nil || p.retry == nil || p.bulkhead == nil {
		t.Fatal("NewPolicy() left an enabled component nil")
	}

	disabled := NewPolicy("remote", config.ForTesting())
	if disabled.CircuitBreaker() != nil || disabled.retry != nil || disabled.bulkhead != nil {
		t.Error("NewPolicy() built a component that is disabled in config")
	}
	if disabled.CircuitState() != StateClosed || disabled.IsCircuitOpen() {
		t.Error("disabled circuit should report closed")
	}
}

func TestCall(t *testing.T) {
	p := NewPolicy("remote", testPolicyConfig())

	got, err := Call(context.Background(), p, func(ctx context.Context) (int64, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("Call() = %d, %v; want 42, nil", got, err)
	}

	entry, err := Call(context.Background(), p, func(ctx context.Context) (*types.RemoteEntry, error) {
		return &types.RemoteEntry{ID: "partial"}, errBackend
	})
	if !errors.Is(err, errBackend) {
		t.Errorf("Call() error = %v, want backend error", err)
	}
	if entry != nil {
		t.Errorf("Call() result = %v, want nil on error", entry)
	}
}

func TestPolicyRetriesThenOpensCircuit(t *testing.T) {
	p := NewPolicy("remote", testPolicyConfig())

	var changes atomic.Int32
	p.SetOnCircuitStateChange(func(from, to State) {
		changes.Add(1)
	})

	var calls atomic.Int32
	fail := func(ctx context.Context) error {
		calls.Add(1)
		return errBackend
	}

	// 2 attempts per call; the breaker opens on the third failed attempt
	_ = p.Execute(context.Background(), fail)
	_ = p.Execute(context.Background(), fail)

	if !p.IsCircuitOpen() {
		t.Fatalf("circuit state = %v, want open", p.CircuitState())
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if changes.Load() != 1 {
		t.Errorf("state changes = %d, want 1", changes.Load())
	}

	err := p.Execute(context.Background(), fail)
	if !types.IsCircuitOpen(err) {
		t.Errorf("Execute() with open circuit = %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != 3 {
		t.Errorf("open circuit let a call through: calls = %d", calls.Load())
	}
}

func TestPolicyNotFoundIsNotAFailure(t *testing.T) {
	p := NewPolicy("remote", testPolicyConfig())

	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		_, err := Call(context.Background(), p, func(ctx context.Context) (*types.RemoteEntry, error) {
			calls.Add(1)
			return nil, types.ErrNotFound
		})
		if !types.IsNotFound(err) {
			t.Fatalf("Call() error = %v, want ErrNotFound", err)
		}
	}

	if p.IsCircuitOpen() {
		t.Error("misses opened the circuit")
	}
	if calls.Load() != 10 {
		t.Errorf("calls = %d, want 10 (misses are not retried)", calls.Load())
	}
}

func TestPolicyBulkheadStats(t *testing.T) {
	p := NewPolicy("remote", testPolicyConfig())
	active, queued, rejected := p.BulkheadStats()
	if active != 0 || queued != 0 || rejected != 0 {
		t.Errorf("BulkheadStats() = %d/%d/%d, want zeros", active, queued, rejected)
	}
}

func TestDisabledPolicy(t *testing.T) {
	p := NewDisabledPolicy()

	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errBackend
	})
	if !errors.Is(err, errBackend) || calls != 1 {
		t.Errorf("Execute() = %v after %d calls, want backend error after 1", err, calls)
	}
	if p.IsCircuitOpen() || p.CircuitState() != StateClosed {
		t.Error("disabled policy should report a closed circuit")
	}
	p.SetOnCircuitStateChange(func(from, to State) {})
}
