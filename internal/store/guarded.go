package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MrWong99/mptmeter/internal/resilience"
)

// Guarded routes every call of an inner [Store] through a circuit breaker.
// Not-found lookups are answers, not failures, and never trip the breaker.
type Guarded struct {
	inner Store
	cb    *resilience.CircuitBreaker
}

var _ Store = (*Guarded)(nil)

// NewGuarded wraps inner. The breaker configuration's IsFailure is replaced so
// that [ErrNotFound] does not count.
func NewGuarded(inner Store, cfg resilience.CircuitBreakerConfig) *Guarded {
	if cfg.Name == "" {
		cfg.Name = "store"
	}
	base := cfg.IsFailure
	cfg.IsFailure = func(err error) bool {
		if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
			return false
		}
		if base != nil {
			return base(err)
		}
		return true
	}
	return &Guarded{inner: inner, cb: resilience.NewCircuitBreaker(cfg)}
}

// Save implements [Store].
func (g *Guarded) Save(ctx context.Context, rec Record) error {
	err := g.cb.Execute(func() error { return g.inner.Save(ctx, rec) })
	if errors.Is(err, resilience.ErrCircuitOpen) {
		slog.Debug("store: breaker open, dropping analysis record", "id", rec.ID)
	}
	return err
}

// Get implements [Store].
func (g *Guarded) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	return resilience.Call(g.cb, func() (Record, error) { return g.inner.Get(ctx, id) })
}

// List implements [Store].
func (g *Guarded) List(ctx context.Context, limit int) ([]Record, error) {
	return resilience.Call(g.cb, func() ([]Record, error) { return g.inner.List(ctx, limit) })
}

// State reports the breaker state.
func (g *Guarded) State() resilience.State {
	return g.cb.State()
}

// Ping fails while the breaker is open and otherwise delegates to the inner
// store when it can ping.
func (g *Guarded) Ping(ctx context.Context) error {
	if g.cb.State() == resilience.StateOpen {
		return resilience.ErrCircuitOpen
	}
	if p, ok := g.inner.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
