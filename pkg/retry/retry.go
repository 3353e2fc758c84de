package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/logger"
)

// Operation is a single attempt. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the total number of attempts, first one included
	MaxAttempts int
	Backoff     BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.GetLogger(),
	}
}

// DefaultRetryIf retries transport failures the stats API recovers from:
// network errors, 429 and 5xx.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	return true
}

// Result describes how Do finished
type Result struct {
	Attempts int
	Err      error
}

// Do runs op until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is cancelled. The last operation error is returned
// unwrapped so callers keep its classification.
func Do(ctx context.Context, op Operation, cfg *Config) Result {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return Result{Attempts: attempt}
		}

		if !retryIf(err) {
			return Result{Attempts: attempt, Err: err}
		}
		if attempt >= maxAttempts {
			if cfg.Logger != nil && maxAttempts > 1 {
				cfg.Logger.WithError(err).WarnWithFields("max retry attempts exceeded", map[string]interface{}{
					"attempts": attempt,
				})
			}
			return Result{Attempts: attempt, Err: err}
		}

		if o, ok := cfg.Backoff.(interface{ Observe(error) }); ok {
			o.Observe(err)
		}
		var delay time.Duration
		if cfg.Backoff != nil {
			delay = cfg.Backoff.NextDelay(attempt)
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if cfg.Logger != nil {
			cfg.Logger.WithError(err).WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":      attempt,
				"delay_ms":     delay.Milliseconds(),
				"max_attempts": maxAttempts,
			})
		}

		if err := Wait(ctx, delay); err != nil {
			return Result{Attempts: attempt, Err: fmt.Errorf("retry cancelled: %w", err)}
		}
	}
}

// DoWithResult is Do for operations that produce a value
func DoWithResult[T any](ctx context.Context, op func(ctx context.Context, attempt int) (T, error), cfg *Config) (T, Result) {
	var out T
	res := Do(ctx, func(ctx context.Context, attempt int) error {
		v, err := op(ctx, attempt)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, cfg)
	return out, res
}
