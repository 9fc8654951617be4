// Package approval exposes the human decision point of the lifecycle. Items
// whose kind requires sign-off park in awaiting_approval until an operator
// decides; the gate is the only path that sets the approved flag.
package approval

import (
	"context"
	"log/slog"

	"ratchet/internal/lifecycle"
	"ratchet/internal/logging"
	"ratchet/internal/store"
)

// Gate lists pending decisions and records their outcomes.
type Gate struct {
	store  *store.Store
	logger *slog.Logger
}

// NewGate creates an approval gate over the work item store.
func NewGate(st *store.Store, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gate{
		store:  st,
		logger: logging.NewComponentLogger(logger, "approval"),
	}
}

// Pending returns every item currently awaiting a decision, highest priority
// first.
func (g *Gate) Pending(ctx context.Context) ([]*store.Item, error) {
	return g.store.List(ctx, lifecycle.StatusAwaitingApproval)
}

// Decide records an approve or reject decision for one item. Approval releases
// the item into processing; rejection is terminal. Items not awaiting approval
// return lifecycle.ErrNotAwaitingApproval, which also covers a second decision
// arriving after the first.
func (g *Gate) Decide(ctx context.Context, id string, approved bool, reason string) (*store.Item, error) {
	item, err := g.store.Decide(ctx, id, approved, reason)
	if err != nil {
		return nil, err
	}

	verdict := "rejected"
	if approved {
		verdict = "approved"
	}
	g.logger.Info("decision recorded",
		logging.String(logging.FieldItemID, item.ID),
		logging.String("decision", verdict),
		logging.String("reason", reason),
		logging.String(logging.FieldStatus, string(item.Status)),
		logging.String(logging.FieldEventType, "approval_decision"),
	)
	return item, nil
}
