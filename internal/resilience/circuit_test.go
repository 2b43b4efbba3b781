package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LavishGent/scancache/internal/config"
	"github.com/LavishGent/scancache/internal/types"
)

var errBackend = errors.New("connection reset")

// fakeClock is a manually advanced clock for open-duration checks.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(t *testing.T) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("remote", config.CircuitBreakerConfig{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		OpenDuration:        time.Minute,
		HalfOpenMaxRequests: 2,
	})
	cb.now = clock.Now
	return cb, clock
}

func TestCircuitBreakerStateString(t *testing.T) {
	//nolint:govet // Test table - alignment not critical
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("State.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewCircuitBreaker(t *testing.T) {
	t.Run("applies defaults for zero values", func(t *testing.T) {
		cb := NewCircuitBreaker("postgres", config.CircuitBreakerConfig{})

		if cb.failureThreshold != 5 {
			t.Errorf("failureThreshold = %v, want 5", cb.failureThreshold)
		}
		if cb.successThreshold != 2 {
			t.Errorf("successThreshold = %v, want 2", cb.successThreshold)
		}
		if cb.openDuration != 30*time.Second {
			t.Errorf("openDuration = %v, want 30s", cb.openDuration)
		}
		if cb.halfOpenMaxRequests != 3 {
			t.Errorf("halfOpenMaxRequests = %v, want 3", cb.halfOpenMaxRequests)
		}
		if cb.Name() != "postgres" {
			t.Errorf("Name() = %v, want postgres", cb.Name())
		}
		if cb.State() != StateClosed {
			t.Errorf("initial state = %v, want closed", cb.State())
		}
	})
}

func TestCircuitBreakerStateTransitions(t *testing.T) {
	cb, clock := newTestBreaker(t)
	fail := func() error { return errBackend }
	ok := func() error { return nil }

	for i := 0; i < 3; i++ {
		if err := cb.Execute(fail); !errors.Is(err, errBackend) {
			t.Fatalf("Execute() error = %v, want backend error", err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state after 3 failures = %v, want open", cb.State())
	}

	if err := cb.Execute(ok); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() while open = %v, want ErrCircuitOpen", err)
	}

	clock.Advance(time.Minute)
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("probe Execute() error = %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("state after first probe = %v, want half-open", cb.State())
	}
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("second probe Execute() error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state after successful probes = %v, want closed", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	clock.Advance(2 * time.Minute)

	if err := cb.Execute(func() error { return errBackend }); !errors.Is(err, errBackend) {
		t.Fatalf("probe error = %v", err)
	}
	if cb.State() != StateOpen {
		t.Errorf("state after failed probe = %v, want open", cb.State())
	}
}

func TestCircuitBreakerHalfOpenLimit(t *testing.T) {
	cb, clock := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	clock.Advance(time.Minute)

	if !cb.Allow() {
		t.Fatal("first probe should be allowed")
	}
	if !cb.Allow() {
		t.Fatal("second probe should be allowed")
	}
	if cb.Allow() {
		t.Error("third probe should be rejected")
	}
}

func TestCircuitBreakerIgnoresMisses(t *testing.T) {
	cb, _ := newTestBreaker(t)

	errs := []error{
		types.ErrNotFound,
		types.ErrUnauthenticated,
		types.NewCacheError("FindLatest", "789", types.TierRemote, types.ErrNotFound),
	}
	for i := 0; i < 10; i++ {
		err := errs[i%len(errs)]
		if got := cb.Execute(func() error { return err }); !errors.Is(got, err) {
			t.Fatalf("Execute() = %v, want %v", got, err)
		}
	}

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed after only misses", cb.State())
	}
	if stats := cb.Stats(); stats.ConsecutiveFails != 0 {
		t.Errorf("ConsecutiveFails = %d, want 0", stats.ConsecutiveFails)
	}
}

func TestCircuitBreakerOnStateChange(t *testing.T) {
	cb, clock := newTestBreaker(t)

	var mu sync.Mutex
	var transitions []string
	cb.SetOnStateChange(func(from, to State) {
		// reading state from the callback must not deadlock
		_ = cb.State()
		_ = cb.Stats()
		mu.Lock()
		transitions = append(transitions, from.String()+"->"+to.String())
		mu.Unlock()
	})

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	clock.Advance(time.Minute)
	cb.Allow()
	cb.RecordSuccess()
	cb.RecordSuccess()

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker(t)
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("state after Reset = %v, want closed", cb.State())
	}
	if !cb.Allow() {
		t.Error("Allow() after Reset = false, want true")
	}
}

func TestCircuitBreakerConcurrency(t *testing.T) {
	cb := NewCircuitBreaker("remote", config.CircuitBreakerConfig{FailureThreshold: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if (i+j)%2 == 0 {
					_ = cb.Execute(func() error { return nil })
				} else {
					_ = cb.Execute(func() error { return errBackend })
				}
			}
		}(i)
	}
	wg.Wait()

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}
