package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "hoopscraper/pkg/errors"
	"hoopscraper/pkg/logger"
)

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{9, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func TestErrorTypeBackoff(t *testing.T) {
	base := &ExponentialBackoff{BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	b := NewErrorTypeBackoff(base)

	b.Observe(errs.Transport(errs.ErrorTypeServerError, 503, "down"))
	assert.Equal(t, 10*time.Millisecond, b.NextDelay(1))

	b.Observe(errs.Transport(errs.ErrorTypeRateLimit, 429, "slow down"))
	assert.Equal(t, 50*time.Millisecond, b.NextDelay(1))
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	res := Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt < 3 {
			return errs.Transport(errs.ErrorTypeNetwork, 0, "reset")
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, calls)
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	calls := 0
	want := errs.Transport(errs.ErrorTypeServerError, 500, "server error")
	res := Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return want
	}, fastConfig(3))

	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, res.Attempts)
	assert.Same(t, want, res.Err)
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	res := Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return errs.Transport(errs.ErrorTypeNotFound, 404, "resource not found")
	}, fastConfig(5))

	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(res.Err, errs.ErrFetchFailure))
}

func TestDoCallsOnRetry(t *testing.T) {
	var seen []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
	}

	Do(context.Background(), func(ctx context.Context, attempt int) error {
		return errors.New("plain errors are retried")
	}, cfg)

	assert.Equal(t, []int{1, 2}, seen)
}

func TestDoCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(5)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}

	res := Do(ctx, func(ctx context.Context, attempt int) error {
		cancel()
		return errs.Transport(errs.ErrorTypeNetwork, 0, "reset")
	}, cfg)

	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, res.Attempts)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errs.Transport(errs.ErrorTypeParsing, 200, "bad json")))
	assert.True(t, DefaultRetryIf(errs.Transport(errs.ErrorTypeRateLimit, 429, "slow down")))
	assert.True(t, DefaultRetryIf(errors.New("unknown")))
}

func TestDoWithResult(t *testing.T) {
	v, res := DoWithResult(context.Background(), func(ctx context.Context, attempt int) (int, error) {
		if attempt == 1 {
			return 0, errs.Transport(errs.ErrorTypeNetwork, 0, "reset")
		}
		return 42, nil
	}, fastConfig(2))

	require.NoError(t, res.Err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, res.Attempts)
}
