// Package retry re-runs stats API calls that fail for transient reasons.
//
// Network errors, 429 and 5xx responses are retried with exponential
// backoff; 404, auth and parse failures are returned after one attempt.
// A 429 backs off five times longer when ErrorTypeBackoff is used.
//
//	res := retry.Do(ctx, func(ctx context.Context, attempt int) error {
//		if attempt > 1 {
//			if err := limiter.Wait(ctx); err != nil {
//				return err
//			}
//		}
//		return call(ctx)
//	}, cfg)
//	if res.Err != nil {
//		// res.Err is the last operation error, classification intact
//	}
package retry
