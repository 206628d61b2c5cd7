package notifications

import (
	"sync"
	"time"
)

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// breaker is a consecutive-failure circuit breaker. After threshold
// failures in a row it rejects calls for cooldown, then lets up to probes
// trial calls through; one success closes it, one failure reopens it.
type breaker struct {
	threshold int
	cooldown  time.Duration
	probes    int
	now       func() time.Time
	onChange  func(from, to BreakerState)

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	inFlight int
}

// admit reports whether a call may proceed and, if so, reserves a probe slot
// while half open.
func (b *breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.transition(BreakerHalfOpen)
	}

	if b.state == BreakerHalfOpen {
		if b.inFlight >= b.probes {
			return false
		}
		b.inFlight++
	}
	return true
}

func (b *breaker) record(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasProbe := b.state == BreakerHalfOpen
	if wasProbe && b.inFlight > 0 {
		b.inFlight--
	}

	if ok {
		b.failures = 0
		b.transition(BreakerClosed)
		return
	}

	b.failures++
	if wasProbe || b.failures >= b.threshold {
		b.openedAt = b.now()
		b.transition(BreakerOpen)
	}
}

// release frees a probe slot without counting the call either way.
func (b *breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen && b.inFlight > 0 {
		b.inFlight--
	}
}

// transition must be called with mu held.
func (b *breaker) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to != BreakerHalfOpen {
		b.inFlight = 0
	}
	if b.onChange != nil {
		b.onChange(from, to)
	}
}

func (b *breaker) current() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
