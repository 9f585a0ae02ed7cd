package crawler

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy decides how often and how long to back off after a transient
// fetch failure.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the first backoff; retry n waits BaseDelay * 2^n.
	BaseDelay time.Duration
}

// DefaultRetryPolicy retries twice, after 500ms and then 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BaseDelay: 500 * time.Millisecond}
}

// Backoff returns the wait before retry number attempt (0-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	return p.BaseDelay << attempt
}

// ShouldRetry reports whether err warrants another attempt after attempt
// retries have already been made.
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Temporary() && attempt < p.MaxRetries
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
