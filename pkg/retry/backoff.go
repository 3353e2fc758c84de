package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "hoopscraper/pkg/errors"
)

// BackoffStrategy computes the pause before retry number attempt (1-based)
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// JitterFactor adds randomness in the range ±delay*JitterFactor (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// ErrorTypeBackoff picks a backoff by the transport type of the last error.
// Rate limited responses back off longer than network blips.
type ErrorTypeBackoff struct {
	Default   BackoffStrategy
	RateLimit BackoffStrategy
	lastType  errs.ErrorType
}

// NewErrorTypeBackoff wraps base with a slower curve for 429 responses
func NewErrorTypeBackoff(base *ExponentialBackoff) *ErrorTypeBackoff {
	rl := *base
	rl.BaseDelay = base.BaseDelay * 5
	if rl.MaxDelay < rl.BaseDelay {
		rl.MaxDelay = rl.BaseDelay
	}
	return &ErrorTypeBackoff{Default: base, RateLimit: &rl}
}

// Observe records the error that triggered the next retry
func (b *ErrorTypeBackoff) Observe(err error) {
	b.lastType = errs.TypeOf(err)
}

// NextDelay implements BackoffStrategy
func (b *ErrorTypeBackoff) NextDelay(attempt int) time.Duration {
	if b.lastType == errs.ErrorTypeRateLimit && b.RateLimit != nil {
		return b.RateLimit.NextDelay(attempt)
	}
	return b.Default.NextDelay(attempt)
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
