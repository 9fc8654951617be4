// Package handler defines the contract between the lifecycle engine and the
// per-kind collaborators that actually perform work, plus the registry the
// engine consults during a sweep.
package handler

import (
	"context"

	"ratchet/internal/store"
)

// Handler performs one unit of work for a single item kind.
//
// Attempt must tolerate at-least-once invocation: a crash-interrupted or
// timed-out attempt may be re-dispatched, and a prior attempt may have
// partially succeeded. The hint carries the strategy advisor's suggestion
// after repeated failures; handlers are free to ignore it. Attempt must honor
// context cancellation — the engine enforces its timeout through ctx.
type Handler interface {
	Attempt(ctx context.Context, item *store.Item, hint string) error
	HealthCheck(ctx context.Context) Health
}

// Func adapts a plain function into a Handler that always reports healthy.
type Func func(ctx context.Context, item *store.Item, hint string) error

// Attempt implements Handler.
func (f Func) Attempt(ctx context.Context, item *store.Item, hint string) error {
	return f(ctx, item, hint)
}

// HealthCheck implements Handler.
func (f Func) HealthCheck(context.Context) Health {
	return Healthy("func")
}
