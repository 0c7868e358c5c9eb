package utils

import (
	"context"
	"time"
)

type RetryStrategy interface {
	NextDelay() time.Duration
	Reset()
}

type ExponentialBackoff struct {
	initialDelay time.Duration
	currentDelay time.Duration
	maxDelay     time.Duration
}

// NewExponentialBackoff starts at one second and doubles up to thirty.
func NewExponentialBackoff() *ExponentialBackoff {
	return NewExponentialBackoffWithLimits(1*time.Second, 30*time.Second)
}

func NewExponentialBackoffWithLimits(initial, maxDelay time.Duration) *ExponentialBackoff {
	if maxDelay < initial {
		maxDelay = initial
	}
	return &ExponentialBackoff{
		initialDelay: initial,
		currentDelay: initial,
		maxDelay:     maxDelay,
	}
}

func (e *ExponentialBackoff) NextDelay() time.Duration {
	delay := e.currentDelay
	e.currentDelay *= 2
	if e.currentDelay > e.maxDelay {
		e.currentDelay = e.maxDelay
	}
	return delay
}

func (e *ExponentialBackoff) Reset() {
	e.currentDelay = e.initialDelay
}

// Retry calls fn until it succeeds, it has been called 1+retries times, or
// ctx is done. The strategy is reset first and waited on between attempts.
// The last error of fn is returned, or ctx.Err() if the wait was interrupted.
func Retry(ctx context.Context, retries int, strategy RetryStrategy, fn func(attempt int) error) error {
	strategy.Reset()

	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(attempt); err == nil || attempt >= retries {
			return err
		}

		timer := time.NewTimer(strategy.NextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
