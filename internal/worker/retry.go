package worker

import (
	"math"
	"time"
)

// RetryPolicy bounds how persistently a failed sweep pass is retried
// before it is abandoned until the next tick.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// withDefaults fills zeroed fields with the sweep defaults: three
// attempts, 2s initial delay doubling up to 30s.
func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxRetries <= 0 {
		r.MaxRetries = 3
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = 2 * time.Second
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = 30 * time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}
	return r
}

// NextDelay returns the backoff before the given 1-based attempt,
// clamped to MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	r = r.withDefaults()
	if attempt < 1 {
		attempt = 1
	}

	d := time.Duration(float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1)))
	if d <= 0 || d > r.MaxDelay {
		// d <= 0 means the float exponent overflowed the duration.
		return r.MaxDelay
	}
	return d
}
