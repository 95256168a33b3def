package delivery

import "time"

// RetryPolicy is the configurable webhook retry schedule.
type RetryPolicy struct {
	MaxRetries int
	InitialDelayMs int64
	MaxDelayMs int64
	BackoffMultiplier float64
}

// DefaultRetryPolicy returns the spec's documented defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		InitialDelayMs: 1000,
		MaxDelayMs: 60000,
		BackoffMultiplier: 2,
	}
}

// Delay computes delay(attempt) = min(maxDelay, initial * multiplier^(attempt-1)),
// attempt being 1-indexed (the first retry after the initial attempt).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delayMs := float64(p.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= p.BackoffMultiplier
		if delayMs > float64(p.MaxDelayMs) {
			delayMs = float64(p.MaxDelayMs)
			break
		}
	}
	return time.Duration(delayMs) * time.Millisecond
}
