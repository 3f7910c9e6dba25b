// Package ratelimit throttles retry attempts.
//
// The batch runner shares one Limiter across all workers so that the total
// rate of attempts, first tries and retries alike, stays under a ceiling
// regardless of how many commands are failing at once.
//
// Usage:
//
//	perSecond, err := ratelimit.ParseRate("30/m")
//	limiter := ratelimit.New(perSecond, 1)
//
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//	// proceed with the attempt
package ratelimit
