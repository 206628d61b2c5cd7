package worker

import (
	"math/rand/v2"
	"time"
)

// Backoff spaces out retries: Base doubled per prior attempt, capped at
// Max, plus a random jitter below Jitter so retries of a burst spread out.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration
}

var defaultBackoff = Backoff{Base: 2 * time.Second, Max: 5 * time.Minute, Jitter: 250 * time.Millisecond}

// Delay is the wait before the next try after attempts failed runs.
func (b Backoff) Delay(attempts int) time.Duration {
	delay := b.Max
	if attempts < 0 {
		attempts = 0
	}
	// beyond 30 doublings the shift overflows; Max applies anyway
	if attempts < 30 {
		if d := b.Base << attempts; d > 0 && d < b.Max {
			delay = d
		}
	}

	if b.Jitter > 0 {
		delay += rand.N(b.Jitter)
	}
	return delay
}

// ExponentialBackoff is the worker default: 2s, 4s, 8s... up to 5m.
func ExponentialBackoff(attempts int) time.Duration {
	return defaultBackoff.Delay(attempts)
}
