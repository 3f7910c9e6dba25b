package retry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"retrying/pkg/envoverride"
	"retrying/pkg/logger"
)

// Outcome is how a retried call ended.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeRejected  Outcome = "rejected"
	OutcomeCancelled Outcome = "cancelled"
)

// Observer receives executor events, for metrics.
type Observer interface {
	ObserveAttempt(policy string, attempt uint)
	ObserveRetry(policy string, attempt uint, delay time.Duration)
	ObserveOutcome(policy string, outcome Outcome, attempts uint)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, uint) {}
func (nopObserver) ObserveRetry(string, uint, time.Duration) {}
func (nopObserver) ObserveOutcome(string, Outcome, uint) {}

// Option configures an Executor.
type Option func(*options)

type options struct {
	name     string
	log      logger.Logger
	clock    Clock
	sleeper  Sleeper
	env      envoverride.Environment
	observer Observer
	onRetry  func(attempt uint, err error, delay time.Duration)
}

// WithName labels logs and metrics. Defaults to "default".
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock replaces the clock used for elapsed time.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithSleeper replaces the default ContextSleeper.
func WithSleeper(s Sleeper) Option {
	return func(o *options) { o.sleeper = s }
}

// WithEnvironment sets the source of environment overrides. Defaults to
// the process environment.
func WithEnvironment(env envoverride.Environment) Option {
	return func(o *options) { o.env = env }
}

// WithObserver registers an observer for attempts, retries and outcomes.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithOnRetry is called before each wait with the failed attempt number,
// its error and the computed delay.
func WithOnRetry(fn func(attempt uint, err error, delay time.Duration)) Option {
	return func(o *options) { o.onRetry = fn }
}

// Executor runs operations under a policy. It is immutable once built and
// safe for concurrent use; every call gets its own Context.
type Executor struct {
	name     string
	stop     Stop
	wait     Wait
	filter   Filter
	prefix   string
	clock    Clock
	sleeper  Sleeper
	log      logger.Logger
	observer Observer
	onRetry  func(attempt uint, err error, delay time.Duration)
}

// NewExecutor validates p and resolves it once, applying environment
// overrides when p.EnvPrefix is set.
func NewExecutor(p Policy, opts ...Option) (*Executor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	o := options{name: "default"}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = logger.Or(o.log)
	if o.clock == nil {
		o.clock = SystemClock{}
	}
	if o.sleeper == nil {
		o.sleeper = ContextSleeper{}
	}
	if o.env == nil {
		o.env = envoverride.OS()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}

	res := envoverride.Resolver{
		Env:    o.env,
		Prefix: p.EnvPrefix,
		Logger: o.log.WithField("policy", o.name),
	}

	e := &Executor{
		name:     o.name,
		stop:     overrideStop(p.Stop, res),
		wait:     overrideWait(p.Wait, res),
		filter:   p.Retry,
		prefix:   p.EnvPrefix,
		clock:    o.clock,
		sleeper:  o.sleeper,
		log:      o.log,
		observer: o.observer,
		onRetry:  o.onRetry,
	}
	if e.stop == nil {
		e.stop = StopNever{}
	}
	if e.filter == nil {
		e.filter = RetryAll{}
	}
	return e, nil
}

func overrideStop(s Stop, r envoverride.Resolver) Stop {
	if !r.Enabled() {
		return s
	}
	switch v := s.(type) {
	case StopAttempts:
		return StopAttempts{Attempts: r.Uint(v.Attempts, envoverride.StopAttempts)}
	case StopDuration:
		return StopDuration{Seconds: r.Float(v.Seconds, envoverride.StopDuration)}
	case StopAttemptsOrDuration:
		return StopAttemptsOrDuration{
			Attempts: StopAttempts{Attempts: r.Uint(v.Attempts.Attempts, envoverride.StopAttempts)},
			Duration: StopDuration{Seconds: r.Float(v.Duration.Seconds, envoverride.StopDuration)},
		}
	}
	return s
}

func overrideWait(w Wait, r envoverride.Resolver) Wait {
	if !r.Enabled() {
		return w
	}
	switch v := w.(type) {
	case WaitFixed:
		return WaitFixed{Seconds: r.Float(v.Seconds, envoverride.WaitFixed)}
	case WaitRandom:
		return WaitRandom{
			Min:     r.Float(v.Min, envoverride.WaitRandomMin),
			Max:     r.Float(v.Max, envoverride.WaitRandomMax),
			Float64: v.Float64,
		}
	case WaitExponential:
		return WaitExponential{
			Multiplier: r.Float(v.Multiplier, envoverride.WaitExponentialMultiplier),
			Min:        r.Float(v.Min, envoverride.WaitExponentialMin),
			Max:        r.Float(v.Max, envoverride.WaitExponentialMax),
			ExpBase:    r.Uint(v.ExpBase, envoverride.WaitExponentialExpBase),
		}
	}
	return w
}

// Name returns the label given with WithName.
func (e *Executor) Name() string {
	return e.name
}

// Describe returns the resolved policy, after environment overrides.
func (e *Executor) Describe() map[string]interface{} {
	d := map[string]interface{}{
		"stop":  describe(e.stop),
		"wait":  describe(e.wait),
		"retry": describe(e.filter),
	}
	if e.prefix != "" {
		d["envs_prefix"] = e.prefix
	}
	return d
}

// Run calls op until it succeeds or the policy gives up, and returns the
// last error unchanged. If ctx ends while waiting, a *CancelledError is
// returned instead.
func (e *Executor) Run(ctx context.Context, op func() error) error {
	return e.run(ctx, op)
}

func (e *Executor) run(ctx context.Context, op func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	rc := NewContext(e.clock)
	log := e.log.WithFields(map[string]interface{}{
		"policy":        e.name,
		"invocation_id": uuid.NewString(),
	})

	for {
		attempt := rc.AttemptNum()
		e.observer.ObserveAttempt(e.name, attempt)

		err := op()
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			e.observer.ObserveOutcome(e.name, OutcomeSuccess, attempt)
			return nil
		}

		if e.stop.StopExecution(rc) {
			log.DebugWithFields("stop policy reached", map[string]interface{}{
				"attempt":    attempt,
				"elapsed_ms": rc.Elapsed().Milliseconds(),
				"error":      err.Error(),
			})
			e.observer.ObserveOutcome(e.name, OutcomeExhausted, attempt)
			return err
		}

		if !e.filter.IsRetryable(err) {
			log.DebugWithFields("error is not retryable", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			e.observer.ObserveOutcome(e.name, OutcomeRejected, attempt)
			return err
		}

		delay := WaitDuration(e.wait, rc)

		if e.onRetry != nil {
			e.onRetry(attempt, err, delay)
		}
		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":  attempt,
			"error":    err.Error(),
			"delay_ms": delay.Milliseconds(),
		})
		e.observer.ObserveRetry(e.name, attempt, delay)

		if serr := e.sleeper.Sleep(ctx, delay); serr != nil {
			log.WarnWithFields("retry cancelled", map[string]interface{}{
				"attempt": attempt,
				"reason":  serr.Error(),
			})
			e.observer.ObserveOutcome(e.name, OutcomeCancelled, attempt)
			return &CancelledError{Cause: serr, Last: err, Attempt: attempt}
		}

		rc.AddAttempt()
	}
}

// Do calls op under e and returns op's own result and error.
func Do[T any](ctx context.Context, e *Executor, op func() (T, error)) (T, error) {
	var result T
	err := e.run(ctx, func() error {
		var opErr error
		result, opErr = op()
		return opErr
	})
	return result, err
}

// Result carries the outcome of a call started with Go.
type Result[T any] struct {
	Value T
	Err   error
}

// Go runs Do on a new goroutine. The returned channel yields exactly one
// Result and is then closed.
func Go[T any](ctx context.Context, e *Executor, op func() (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		v, err := Do(ctx, e, op)
		ch <- Result[T]{Value: v, Err: err}
	}()
	return ch
}

// Wrap decorates op so that every call goes through e.
func Wrap[T any](e *Executor, op func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return Do(ctx, e, func() (T, error) { return op(ctx) })
	}
}
