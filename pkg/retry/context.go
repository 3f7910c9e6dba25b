package retry

import "time"

// Clock supplies the current time. Implementations must return readings that
// carry a monotonic component, as time.Now does.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock through time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Context is the state of a single retried call: how many attempts have
// been made and when the call started. A fresh Context is created for every
// call and never shared between calls.
type Context struct {
	attempt uint
	start   time.Time
	clock   Clock
}

// NewContext starts a new call at attempt 1. A nil clock means SystemClock.
func NewContext(clock Clock) *Context {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Context{
		attempt: 1,
		start:   clock.Now(),
		clock:   clock,
	}
}

// AttemptNum is the 1-based number of the attempt in flight or just finished.
func (c *Context) AttemptNum() uint {
	return c.attempt
}

func (c *Context) StartTime() time.Time {
	return c.start
}

// Elapsed is recomputed from the clock on every call.
func (c *Context) Elapsed() time.Duration {
	return c.clock.Now().Sub(c.start)
}

// AddAttempt advances to the next attempt.
func (c *Context) AddAttempt() {
	c.attempt++
}
