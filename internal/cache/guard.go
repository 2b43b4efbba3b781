package cache

import (
	"context"
	"time"

	"github.com/LavishGent/scancache/internal/resilience"
)

// remoteGuard runs remote tier calls under the resilience policy with a
// per-attempt timeout.
type remoteGuard struct {
	exec    resilience.Executor
	timeout time.Duration
}

func newRemoteGuard(exec resilience.Executor, timeout time.Duration) *remoteGuard {
	if exec == nil {
		exec = resilience.NewDisabledPolicy()
	}
	return &remoteGuard{exec: exec, timeout: timeout}
}

func (g *remoteGuard) do(ctx context.Context, fn func(context.Context) error) error {
	_, err := guarded(ctx, g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// guarded is the typed form of remoteGuard.do.
func guarded[T any](ctx context.Context, g *remoteGuard, fn func(context.Context) (T, error)) (T, error) {
	return resilience.Call(ctx, g.exec, func(ctx context.Context) (T, error) {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return fn(ctx)
	})
}
