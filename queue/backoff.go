package queue

import (
	"math"
	"time"
)

// Backoff computes the delay before a retry attempt.
type Backoff interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	Delay(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay each attempt:
// Delay = min(Initial * 2^(attempt-1), Max).
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialBackoff creates an exponential backoff strategy
func NewExponentialBackoff(initial, maxDelay time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(attempt-1), capped at Max
func (b *ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(b.Initial) * math.Pow(2, float64(attempt-1)))
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// DefaultBackoff is the pipeline default: exponential starting at 1s,
// capped at 1m.
func DefaultBackoff() Backoff {
	return NewExponentialBackoff(time.Second, time.Minute)
}
