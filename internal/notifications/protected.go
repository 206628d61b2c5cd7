package notifications

import (
	"context"
	"errors"
	"time"
)

var ErrCircuitOpen = errors.New("notifications: circuit breaker open")

type ProtectedNotifierConfig struct {
	// Timeout bounds each send; default 3s.
	Timeout time.Duration

	// FailureThreshold consecutive failures open the circuit; default 3.
	FailureThreshold int

	// Cooldown is how long the circuit stays open; default 15s.
	Cooldown time.Duration

	// HalfOpenMaxCalls trial sends are allowed after the cooldown; default 1.
	HalfOpenMaxCalls int

	// OnStateChange, when set, is called on every transition with the
	// breaker lock held; it must not call back into the notifier.
	OnStateChange func(from, to BreakerState)
}

// ProtectedNotifier wraps a provider with a per-send timeout and a circuit
// breaker so a dead provider fails jobs fast instead of tying up workers.
type ProtectedNotifier struct {
	inner   Notifier
	timeout time.Duration
	breaker *breaker
}

func NewProtectedNotifier(inner Notifier, cfg ProtectedNotifierConfig) *ProtectedNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &ProtectedNotifier{
		inner:   inner,
		timeout: cfg.Timeout,
		breaker: &breaker{
			threshold: cfg.FailureThreshold,
			cooldown:  cfg.Cooldown,
			probes:    cfg.HalfOpenMaxCalls,
			now:       time.Now,
			onChange:  cfg.OnStateChange,
		},
	}
}

func (n *ProtectedNotifier) SendWelcome(ctx context.Context, in WelcomeInput) error {
	return n.guard(ctx, func(ctx context.Context) error {
		return n.inner.SendWelcome(ctx, in)
	})
}

func (n *ProtectedNotifier) SendMappingAssigned(ctx context.Context, in MappingAssignedInput) error {
	return n.guard(ctx, func(ctx context.Context) error {
		return n.inner.SendMappingAssigned(ctx, in)
	})
}

func (n *ProtectedNotifier) State() BreakerState { return n.breaker.current() }

func (n *ProtectedNotifier) guard(ctx context.Context, send func(context.Context) error) error {
	if !n.breaker.admit() {
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	err := send(sendCtx)

	// the caller gave up (e.g. worker shutdown); says nothing about the provider
	if err != nil && ctx.Err() != nil {
		n.breaker.release()
		return err
	}

	n.breaker.record(err == nil)
	return err
}
