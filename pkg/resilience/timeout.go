package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout gives up on fn once the timeout passes and returns
// context.DeadlineExceeded; fn keeps running in the background until it
// notices its context. Use it only where fn has no side effects the caller
// depends on, such as health probes.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(tctx) }()
	select {
	case err := <-done:
		return err
	case <-tctx.Done():
		return deadlineError(ctx, name, timeout)
	}
}

// Bounded runs fn synchronously under a context that expires after timeout
// and never returns while fn is still running. A nil result from fn wins
// even when it arrives late, since its side effects have happened; an error
// after the deadline is reported as context.DeadlineExceeded.
func Bounded(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(tctx)
	if err != nil && tctx.Err() != nil {
		return fmt.Errorf("%w: %v", deadlineError(ctx, name, timeout), err)
	}
	return err
}

func deadlineError(parent context.Context, name string, timeout time.Duration) error {
	if parent.Err() != nil {
		return fmt.Errorf("%s: parent context cancelled: %w", name, parent.Err())
	}
	return fmt.Errorf("%s: %w (limit: %v)", name, context.DeadlineExceeded, timeout)
}
