package job

import (
	"context"
	"math/rand"
	"time"

	"github.com/paperpulse/paperpulse/internal/config"
)

// RetryPolicy retries transient errors with exponential backoff and
// jitter. Retries happen inside a running job without changing its
// externally visible state; only exhaustion surfaces the error.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	Jitter      float64 // Fraction of each delay randomized, 0-1
}

// PolicyFromConfig converts the configured retry knobs.
func PolicyFromConfig(rc config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		BaseDelay:   time.Duration(rc.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(rc.MaxDelayMS) * time.Millisecond,
		MaxAttempts: rc.MaxAttempts,
		Jitter:      rc.Jitter,
	}
}

// Do runs fn, retrying transient errors until attempts are exhausted or
// the context is cancelled. Non-transient errors return immediately.
func (p RetryPolicy) Do(ctx context.Context, isTransient func(error) bool, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	delay := p.BaseDelay
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isTransient(err) || attempt >= attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.jittered(delay)):
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

// jittered randomizes a delay by the configured jitter fraction, so
// concurrent retries against one source do not synchronize.
func (p RetryPolicy) jittered(d time.Duration) time.Duration {
	if p.Jitter <= 0 || d <= 0 {
		return d
	}
	spread := float64(d) * p.Jitter
	return time.Duration(float64(d) - spread + rand.Float64()*2*spread)
}
