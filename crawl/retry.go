package crawl

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fwojciec/simpledocs"
)

// Backoff retries a failed call with exponentially growing delays.
type Backoff struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the wait before the first retry. Each following wait
	// doubles, up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Defaults to IsRetryable.
	Retryable func(error) bool
}

// DefaultBackoff retries three times waiting 4s, 8s and 10s.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxRetries: 3,
		BaseDelay:  4 * time.Second,
		MaxDelay:   10 * time.Second,
	}
}

// NoDelayBackoff retries n times without waiting.
func NoDelayBackoff(n int) Backoff {
	return Backoff{MaxRetries: n}
}

// Delays returns the wait before each retry.
func (b Backoff) Delays() []time.Duration {
	delays := make([]time.Duration, 0, b.MaxRetries)
	d := b.BaseDelay
	for range b.MaxRetries {
		if b.MaxDelay > 0 && d > b.MaxDelay {
			d = b.MaxDelay
		}
		delays = append(delays, d)
		d *= 2
	}
	return delays
}

// IsRetryable reports whether err may succeed on another attempt.
// Invalid input and context cancellation are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return simpledocs.ErrorCode(err) != simpledocs.EINVALID
}

// Do calls fn until it succeeds, fails with a non-retryable error or the
// retries are exhausted, and returns the last error.
// The logger, if provided, receives one entry per retry.
func (b Backoff) Do(ctx context.Context, op string, fn func(ctx context.Context) error, logger *slog.Logger) error {
	retryable := b.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	delays := b.Delays()

	var lastErr error
	for attempt := 0; attempt <= len(delays); attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == len(delays) || !retryable(err) {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if logger != nil {
			logger.Warn("retrying", "op", op, "attempt", attempt+2, "delay", delays[attempt], "err", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delays[attempt]):
		}
	}

	return lastErr
}
