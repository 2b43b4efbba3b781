package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LavishGent/scancache/internal/config"
)

func TestNewBulkheadDefaults(t *testing.T) {
	b := NewBulkhead(config.BulkheadConfig{})

	if b.maxConcurrent != 50 {
		t.Errorf("maxConcurrent = %d, want 50", b.maxConcurrent)
	}
	if b.acquireTimeout != 100*time.Millisecond {
		t.Errorf("acquireTimeout = %v, want 100ms", b.acquireTimeout)
	}
}

func TestBulkheadExecute(t *testing.T) {
	b := NewBulkhead(config.BulkheadConfig{MaxConcurrent: 2})

	called := false
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("Execute() error = %v, called = %v", err, called)
	}
	if b.TotalExecuted() != 1 {
		t.Errorf("TotalExecuted() = %d, want 1", b.TotalExecuted())
	}

	if err := b.Execute(context.Background(), func(ctx context.Context) error { return errBackend }); !errors.Is(err, errBackend) {
		t.Errorf("Execute() error = %v, want backend error", err)
	}
}

func TestBulkheadConcurrencyLimit(t *testing.T) {
	b := NewBulkhead(config.BulkheadConfig{
		MaxConcurrent:  3,
		MaxQueue:       100,
		AcquireTimeout: 5 * time.Second,
	})

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(context.Background(), func(ctx context.Context) error {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}
	if b.TotalExecuted() != 20 {
		t.Errorf("TotalExecuted() = %d, want 20", b.TotalExecuted())
	}
}

func TestBulkheadRejectsWhenQueueFull(t *testing.T) {
	b := NewBulkhead(config.BulkheadConfig{
		MaxConcurrent:  1,
		MaxQueue:       0,
		AcquireTimeout: time.Second,
	})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Execute() error = %v, want ErrBulkheadFull", err)
	}
	if b.RejectedCount() != 1 {
		t.Errorf("RejectedCount() = %d, want 1", b.RejectedCount())
	}
	close(release)
}

func TestBulkheadTimeout(t *testing.T) {
	b := NewBulkhead(config.BulkheadConfig{
		MaxConcurrent:  1,
		MaxQueue:       1,
		AcquireTimeout: 20 * time.Millisecond,
	})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	err := b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrBulkheadTimeout) {
		t.Errorf("Execute() error = %v, want ErrBulkheadTimeout", err)
	}
	if b.QueuedCount() != 0 {
		t.Errorf("QueuedCount() = %d, want 0 after timeout", b.QueuedCount())
	}
}

func TestBulkheadContextCancellation(t *testing.T) {
	b := NewBulkhead(config.BulkheadConfig{
		MaxConcurrent:  1,
		MaxQueue:       1,
		AcquireTimeout: time.Second,
	})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := b.Execute(ctx, func(ctx context.Context) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v, want context.DeadlineExceeded", err)
	}
}
