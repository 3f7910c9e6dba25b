package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow reports whether an event may happen now, consuming a token if so
	Allow() bool
	// Wait blocks until an event may happen or ctx is done
	Wait(ctx context.Context) error
}

// tokenBucket adapts golang.org/x/time/rate to Limiter
type tokenBucket struct {
	limiter *rate.Limiter
}

// New returns a token bucket admitting perSecond events per second with the
// given burst. A non-positive rate means no limit.
func New(perSecond float64, burst int) Limiter {
	if perSecond <= 0 {
		return Unlimited()
	}
	if burst < 1 {
		burst = 1
	}
	return &tokenBucket{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (tb *tokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

func (tb *tokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

type unlimited struct{}

func (unlimited) Allow() bool { return true }

func (unlimited) Wait(ctx context.Context) error { return ctx.Err() }

// Unlimited returns a limiter that never throttles.
func Unlimited() Limiter {
	return unlimited{}
}

// ParseRate parses "N", "N/s", "N/m" or "N/h" into events per second.
// An empty string or "0" means unlimited.
func ParseRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	num, unit, hasUnit := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid rate %q: expected a non-negative number", s)
	}
	if !hasUnit {
		return n, nil
	}

	var per time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "s", "sec", "second":
		per = time.Second
	case "m", "min", "minute":
		per = time.Minute
	case "h", "hour":
		per = time.Hour
	default:
		return 0, fmt.Errorf("invalid rate %q: unknown unit %q", s, unit)
	}
	return n / per.Seconds(), nil
}
