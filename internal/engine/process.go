package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ratchet/internal/lifecycle"
	"ratchet/internal/logging"
	"ratchet/internal/store"
)

// processItem advances one item as far as the current pass allows. A pending
// item is routed into its initial stage; when routing lands it in progress the
// same pass runs the handler, so unattended items do not wait an extra sweep.
func (m *Manager) processItem(ctx context.Context, id string) {
	item, err := m.store.GetByID(ctx, id)
	if err != nil {
		m.logger.Warn("item vanished before processing", logging.String(logging.FieldItemID, id), logging.Error(err))
		return
	}

	if item.Status == lifecycle.StatusPending {
		item, err = m.route(ctx, item)
		if err != nil {
			if errors.Is(err, lifecycle.ErrInvalidTransition) {
				// Another sweep or an operator moved it first.
				return
			}
			m.setLastError(err)
			m.logger.Error("routing failed",
				logging.String(logging.FieldItemID, item.ID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "route_failed"),
			)
			return
		}
	}

	if item.Status != lifecycle.StatusInProgress {
		return
	}
	m.attempt(ctx, item)
}

// route moves a pending item to its first non-pending status: items that need
// a decision park in awaiting_approval, everything else goes straight to work.
func (m *Manager) route(ctx context.Context, item *store.Item) (*store.Item, error) {
	to := lifecycle.StatusInProgress
	reason := "routed for processing"
	if item.RequiresApproval && item.Approved == nil {
		to = lifecycle.StatusAwaitingApproval
		reason = "routed for approval"
	}

	routed, err := m.store.Transition(ctx, item.ID, to, lifecycle.ActorEngine, reason)
	if err != nil {
		return item, err
	}
	m.logger.Info("routed item",
		logging.String(logging.FieldItemID, routed.ID),
		logging.String("kind", string(routed.Kind)),
		logging.String(logging.FieldStatus, string(routed.Status)),
		logging.String(logging.FieldStage, string(routed.Stage())),
		logging.String(logging.FieldEventType, "item_routed"),
	)
	return routed, nil
}

// attempt runs the handler for one in-progress item and accounts the outcome.
func (m *Manager) attempt(ctx context.Context, item *store.Item) {
	h, ok := m.registry.For(item.Kind)
	if !ok {
		// A host configuration gap, not an item failure: the item keeps its
		// attempt budget and becomes eligible again once a handler exists.
		m.logger.Warn("no handler registered for kind; item skipped",
			logging.String(logging.FieldItemID, item.ID),
			logging.String("kind", string(item.Kind)),
			logging.String(logging.FieldEventType, "handler_missing"),
			logging.String(logging.FieldErrorHint, "register a handler for this kind and restart"),
		)
		return
	}

	if err := m.store.ClaimHeartbeat(ctx, item.ID); err != nil {
		m.logger.Warn("failed to claim item", logging.String(logging.FieldItemID, item.ID), logging.Error(err))
		return
	}
	stopBeat := m.heartbeat.StartLoop(ctx, item.ID)
	defer stopBeat()

	hint := m.advisor.Hint(ctx, item)
	if hint != "" {
		m.logger.Info("strategy hint for attempt",
			logging.String(logging.FieldItemID, item.ID),
			logging.String("hint", hint),
		)
	}

	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if m.handlerTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, m.handlerTimeout)
	}
	started := time.Now()
	err := h.Attempt(attemptCtx, item, hint)
	cancel()
	elapsed := time.Since(started)

	if err == nil {
		if _, completeErr := m.store.RecordSuccess(ctx, item.ID, "handler completed"); completeErr != nil {
			m.setLastError(completeErr)
			m.logger.Error("failed to record success",
				logging.String(logging.FieldItemID, item.ID),
				logging.Error(completeErr),
			)
			return
		}
		m.logger.Info("item completed",
			logging.String(logging.FieldItemID, item.ID),
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldEventType, "item_completed"),
		)
		return
	}

	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		// Shutdown, not a handler verdict. The next daemon run re-attempts
		// with the budget intact.
		m.logger.Info("attempt interrupted by shutdown",
			logging.String(logging.FieldItemID, item.ID),
		)
		return
	}

	reason := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		reason = fmt.Sprintf("handler timed out after %s", m.handlerTimeout)
	}
	updated, terminal, recordErr := m.store.RecordFailure(context.WithoutCancel(ctx), item.ID, item.AttemptCount, reason)
	if recordErr != nil {
		if errors.Is(recordErr, lifecycle.ErrInvalidTransition) {
			// Lost the accounting race to a concurrent sweep.
			return
		}
		m.setLastError(recordErr)
		m.logger.Error("failed to record attempt failure",
			logging.String(logging.FieldItemID, item.ID),
			logging.Error(recordErr),
		)
		return
	}

	if terminal {
		m.logger.Warn("attempt budget exhausted; item failed",
			logging.String(logging.FieldItemID, updated.ID),
			logging.Int("attempts", updated.AttemptCount),
			logging.String("last_error", reason),
			logging.String(logging.FieldEventType, "item_failed"),
		)
		return
	}
	m.logger.Warn("attempt failed; will retry",
		logging.String(logging.FieldItemID, updated.ID),
		logging.Int("attempt", updated.AttemptCount),
		logging.Int("max_attempts", updated.MaxAttempts),
		logging.String("last_error", reason),
		logging.String(logging.FieldEventType, "attempt_failed"),
	)
}
