package retry

import (
	"context"
	"fmt"
	"time"
)

// Sleeper suspends the retry loop between attempts.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// BlockingSleeper halts the calling goroutine with time.Sleep. The context
// is ignored, so the wait cannot be interrupted.
type BlockingSleeper struct{}

func (BlockingSleeper) Sleep(_ context.Context, d time.Duration) error {
	if d > 0 {
		time.Sleep(d)
	}
	return nil
}

// ContextSleeper parks the goroutine on a timer and wakes early when ctx is
// done. It is the default.
type ContextSleeper struct{}

func (ContextSleeper) Sleep(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

// Sleep waits for d or until ctx is done, returning the context's cause in
// the latter case. A done context is reported even when d is zero.
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return context.Cause(ctx)
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// CancelledError is returned when the context ends while waiting between
// attempts. It wraps both the cancellation cause and the last operation
// error.
type CancelledError struct {
	Cause   error
	Last    error
	Attempt uint
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("retry cancelled after attempt %d: %v (last error: %v)", e.Attempt, e.Cause, e.Last)
}

func (e *CancelledError) Unwrap() []error {
	return []error{e.Cause, e.Last}
}
