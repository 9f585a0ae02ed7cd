// Package ratelimit provides the politeness delay used before outgoing requests.
//
// A DelayWindow draws a uniformly distributed delay from [min, max] on every
// call. It holds no mutable state, so any number of workers may share one
// window without serializing on it: each worker paces itself independently.
package ratelimit

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// ErrInvalidWindow is returned when min is negative or greater than max.
var ErrInvalidWindow = errors.New("invalid delay window: require 0 <= min <= max")

// DelayWindow is a random politeness delay in the closed range [Min, Max].
type DelayWindow struct {
	min time.Duration
	max time.Duration
}

// NewDelayWindow creates a DelayWindow. min == max yields a fixed delay and
// a zero window disables waiting.
func NewDelayWindow(minDelay, maxDelay time.Duration) (*DelayWindow, error) {
	if minDelay < 0 || minDelay > maxDelay {
		return nil, ErrInvalidWindow
	}
	return &DelayWindow{min: minDelay, max: maxDelay}, nil
}

// Min returns the lower bound of the window.
func (w *DelayWindow) Min() time.Duration { return w.min }

// Max returns the upper bound of the window.
func (w *DelayWindow) Max() time.Duration { return w.max }

// Next draws the next delay.
func (w *DelayWindow) Next() time.Duration {
	if w.max == w.min {
		return w.min
	}
	// +1 makes max itself reachable.
	return w.min + rand.N(w.max-w.min+1) //nolint:gosec // Jitter does not need a CSPRNG.
}

// Wait sleeps for a freshly drawn delay. It returns ctx.Err() as soon as the
// context is done, without waiting for the rest of the delay.
func (w *DelayWindow) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := w.Next()
	if d <= 0 {
		return nil
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
