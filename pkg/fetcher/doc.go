// Package fetcher runs the sequential, rate-limited fetch loop.
//
// The loop calls a FetchFunc once per subject, in order, waiting on a
// ratelimit.Limiter between consecutive calls. Transient failures are
// retried through package retry; permanent ones are recorded as a failed
// Result and the loop continues with the next subject. The caller owns the
// Accumulator and decides what to do with failures.
//
// With a Store attached, subjects completed by an earlier run are taken
// from the store instead of being fetched again.
package fetcher
