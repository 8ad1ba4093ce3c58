package shared

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 200 * time.Millisecond
	MaxRetryDelay        = 2 * time.Second
)

// RetryPolicy is a bounded retry budget with exponential backoff and
// jitter.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
	// Sleep waits between attempts; tests replace it to run instantly.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryPolicy(attempts int, delayMs int) RetryPolicy {
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	delay := time.Duration(delayMs) * time.Millisecond
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return RetryPolicy{
		Attempts: attempts,
		Delay:    delay,
		MaxDelay: MaxRetryDelay,
	}
}

// Do runs op until it succeeds, reports a non-retryable failure, or the
// budget is spent. It returns the last error and whether the budget was
// exhausted on a retryable failure.
func (p RetryPolicy) Do(ctx context.Context, op func(attempt int) (bool, error)) (bool, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return false, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("operation canceled").
				WithCause(ctx.Err())
		}
		retry, err := op(attempt)
		if err == nil {
			return false, nil
		}
		lastErr = err
		if !retry {
			return false, err
		}
		if attempt == attempts-1 {
			return true, err
		}
		if err := p.sleep(ctx, p.Backoff(attempt)); err != nil {
			return false, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("operation canceled").
				WithCause(err)
		}
	}
	return true, lastErr
}

// Backoff is the wait after the given zero based attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.Delay
	if base <= 0 {
		base = DefaultRetryDelay
	}
	ceiling := p.MaxDelay
	if ceiling <= 0 {
		ceiling = MaxRetryDelay
	}
	delay := base * time.Duration(1<<attempt)
	if delay > ceiling || delay <= 0 {
		delay = ceiling
	}
	jitter := time.Duration(rand.Int64N(int64(delay/2) + 1))
	return delay + jitter
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
