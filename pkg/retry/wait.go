package retry

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Wait computes the delay, in seconds, before the next attempt. It is called
// with the context of the attempt that just failed.
type Wait interface {
	WaitSeconds(rc *Context) float64
}

// WaitFixed waits the same amount every time.
type WaitFixed struct {
	Seconds float64
}

func (w WaitFixed) WaitSeconds(*Context) float64 {
	return w.Seconds
}

func (w WaitFixed) String() string {
	return fmt.Sprintf("fixed(%gs)", w.Seconds)
}

// WaitRandom waits a uniformly distributed amount in [Min, Max], drawn anew
// on every call.
type WaitRandom struct {
	Min float64
	Max float64

	// Float64 returns a value in [0, 1]. Defaults to a sample drawn from
	// math/rand/v2's top-level generator, which is safe for concurrent use.
	Float64 func() float64
}

// unitInclusive draws uniformly from the 2^53+1 evenly spaced values in
// [0, 1], so both bounds can occur.
func unitInclusive() float64 {
	return float64(rand.Uint64N(1<<53+1)) / (1 << 53)
}

func (w WaitRandom) WaitSeconds(*Context) float64 {
	if w.Max == w.Min {
		return w.Min
	}
	next := w.Float64
	if next == nil {
		next = unitInclusive
	}
	v := w.Min + next()*(w.Max-w.Min)
	// rounding can push the sample just past the upper bound
	if w.Min <= w.Max {
		v = math.Min(math.Max(v, w.Min), w.Max)
	}
	return v
}

func (w WaitRandom) String() string {
	return fmt.Sprintf("random(%gs..%gs)", w.Min, w.Max)
}

// WaitExponential waits Multiplier*ExpBase^(attempt-1)+Min seconds, capped
// at Max and never negative.
type WaitExponential struct {
	Multiplier float64
	Min        float64
	Max        float64
	ExpBase    uint
}

func (w WaitExponential) WaitSeconds(rc *Context) float64 {
	var k uint
	if n := rc.AttemptNum(); n > 0 {
		k = n - 1
	}

	delay := w.Min
	if w.Multiplier != 0 {
		term := w.Multiplier * math.Pow(float64(w.ExpBase), float64(k))
		if math.IsInf(term, 1) {
			return math.Max(w.Max, 0)
		}
		delay += term
	}
	if delay > w.Max {
		delay = w.Max
	}
	if delay < 0 || math.IsNaN(delay) {
		delay = 0
	}
	return delay
}

func (w WaitExponential) String() string {
	return fmt.Sprintf("exponential(multiplier=%g, min=%gs, max=%gs, exp_base=%d)", w.Multiplier, w.Min, w.Max, w.ExpBase)
}

// WaitDuration evaluates w for rc and converts the result to a duration.
// A nil policy waits zero.
func WaitDuration(w Wait, rc *Context) time.Duration {
	if w == nil {
		return 0
	}
	return secondsToDuration(w.WaitSeconds(rc))
}

func secondsToDuration(s float64) time.Duration {
	switch {
	case math.IsNaN(s) || s <= 0:
		return 0
	case s >= float64(math.MaxInt64)/float64(time.Second):
		return time.Duration(math.MaxInt64)
	default:
		return time.Duration(s * float64(time.Second))
	}
}
