// Package ratelimit paces calls to the stats API.
//
// The fetch loop only knows the Limiter interface, so the pacing policy can
// be swapped without touching the loop:
//
//   - FixedInterval: a constant pause before every call (600ms by default).
//     This is what stats.nba.com tolerates from a single client.
//   - TokenBucket: a burst of N calls, then a pause until the period ends.
//   - SlidingWindow: at most N calls in any trailing window.
//   - None: no pause, for fetches that never leave the process.
//
// Usage:
//
//	limiter, err := ratelimit.New("fixed", 600*time.Millisecond, 0)
//	if err != nil {
//	    return err
//	}
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // cancelled
//	}
package ratelimit
