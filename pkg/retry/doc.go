// Package retry runs fallible operations under a declarative retry policy.
//
// A Policy combines three independent decisions:
//   - Stop: when to give up (StopAttempts, StopDuration, StopAttemptsOrDuration)
//   - Wait: how long to pause before the next attempt (WaitFixed, WaitRandom,
//     WaitExponential)
//   - Retry: which errors are worth retrying (AllowList, DenyList, Classified)
//
// An Executor resolves a Policy once, applying environment overrides when an
// EnvPrefix is set, and then drives every call through the same loop:
// invoke, and on failure consult Stop, then the filter, then wait and invoke
// again. The error returned is always the one produced by the last attempt.
//
// Basic usage:
//
//	policy, err := retry.NewPolicy(
//		retry.Attempts(5),
//		retry.Exponential(0.5, 1, 10.5, 2),
//		retry.IfErrors(errs.ErrorTypeNetwork, retry.KindOf[*net.OpError]()),
//		retry.EnvsPrefix("MY_SERVICE"),
//	)
//	executor, err := retry.NewExecutor(policy, retry.WithLogger(logger.GetLogger()))
//
//	body, err := retry.Do(ctx, executor, func() ([]byte, error) {
//		return fetch(url)
//	})
//
// Waiting:
//
// The default ContextSleeper parks only the calling goroutine and returns a
// *CancelledError when ctx ends mid-wait. BlockingSleeper halts the goroutine
// with time.Sleep and ignores ctx. Both produce the same retry decisions.
//
// Environment overrides:
//
// With EnvsPrefix("MY_SERVICE"), MY_SERVICE__STOP__ATTEMPTS=7 replaces the
// attempt limit. See package envoverride for the matching rules.
package retry
