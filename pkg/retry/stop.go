package retry

import "fmt"

// Stop decides whether to give up after a failed attempt.
type Stop interface {
	StopExecution(rc *Context) bool
}

// StopNever keeps retrying forever.
type StopNever struct{}

func (StopNever) StopExecution(*Context) bool { return false }

func (StopNever) String() string { return "never" }

// StopAttempts gives up once Attempts attempts have been made.
type StopAttempts struct {
	Attempts uint
}

func (s StopAttempts) StopExecution(rc *Context) bool {
	return rc.AttemptNum() >= s.Attempts
}

func (s StopAttempts) String() string {
	return fmt.Sprintf("attempts(%d)", s.Attempts)
}

// StopDuration gives up once Seconds have elapsed since the call started.
// It is checked between attempts only and does not interrupt a running one.
type StopDuration struct {
	Seconds float64
}

func (s StopDuration) StopExecution(rc *Context) bool {
	return rc.Elapsed().Seconds() >= s.Seconds
}

func (s StopDuration) String() string {
	return fmt.Sprintf("duration(%gs)", s.Seconds)
}

// StopAttemptsOrDuration gives up when either limit is reached.
type StopAttemptsOrDuration struct {
	Attempts StopAttempts
	Duration StopDuration
}

func (s StopAttemptsOrDuration) StopExecution(rc *Context) bool {
	return s.Attempts.StopExecution(rc) || s.Duration.StopExecution(rc)
}

func (s StopAttemptsOrDuration) String() string {
	return s.Attempts.String() + " | " + s.Duration.String()
}
