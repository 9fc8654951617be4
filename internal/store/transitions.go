package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ratchet/internal/ledger"
	"ratchet/internal/lifecycle"
)

// Transition moves an item to a new status, validating the edge and the
// approval guard, and appends the matching ledger entry — all in one
// transaction. A reader never observes the status without its audit record.
func (s *Store) Transition(ctx context.Context, id string, to lifecycle.Status, actor lifecycle.Actor, reason string) (*Item, error) {
	var result *Item
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		item, err := getByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := lifecycle.ValidateTransition(item.Status, to, item.RequiresApproval, item.Approved); err != nil {
			return err
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(
			ctx,
			`UPDATE work_items
             SET status = ?, last_heartbeat = NULL, updated_at = ?
             WHERE id = ? AND status = ?`,
			string(to),
			now.Format(time.RFC3339Nano),
			id,
			string(item.Status),
		)
		if err != nil {
			return fmt.Errorf("apply transition: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s changed concurrently", lifecycle.ErrInvalidTransition, id)
		}

		if err := ledger.Append(ctx, tx, ledger.Entry{
			ItemID:     id,
			Timestamp:  now,
			Kind:       ledger.KindTransition,
			FromStatus: item.Status,
			ToStatus:   to,
			Actor:      actor,
			Reason:     reason,
		}); err != nil {
			return err
		}

		item.Status = to
		item.LastHeartbeat = nil
		item.UpdatedAt = now
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordFailure accounts one failed processing attempt. observedAttempts is
// the attempt count the caller saw when it dispatched the item; if another
// actor already recorded a failure for the same attempt the guarded update
// misses and the call reports a conflict instead of double counting. When the
// budget is exhausted the item moves to failed in the same transaction.
// Returns the updated item and whether it is now terminal.
func (s *Store) RecordFailure(ctx context.Context, id string, observedAttempts int, reason string) (*Item, bool, error) {
	var (
		result   *Item
		terminal bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		item, err := getByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if item.Status != lifecycle.StatusInProgress {
			return fmt.Errorf("%w: cannot record failure for %s item %s",
				lifecycle.ErrInvalidTransition, item.Status, id)
		}
		if item.AttemptCount != observedAttempts {
			return fmt.Errorf("%w: attempt already recorded for %s", lifecycle.ErrInvalidTransition, id)
		}

		newCount := observedAttempts + 1
		terminal = newCount >= item.MaxAttempts
		status := lifecycle.StatusInProgress
		if terminal {
			status = lifecycle.StatusFailed
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(
			ctx,
			`UPDATE work_items
             SET attempt_count = ?, status = ?, last_error = ?, last_heartbeat = NULL, updated_at = ?
             WHERE id = ? AND attempt_count = ? AND status = ?`,
			newCount,
			string(status),
			reason,
			now.Format(time.RFC3339Nano),
			id,
			observedAttempts,
			string(lifecycle.StatusInProgress),
		)
		if err != nil {
			return fmt.Errorf("record attempt failure: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: attempt already recorded for %s", lifecycle.ErrInvalidTransition, id)
		}

		if err := ledger.Append(ctx, tx, ledger.Entry{
			ItemID:     id,
			Timestamp:  now,
			Kind:       ledger.KindRetry,
			FromStatus: lifecycle.StatusInProgress,
			ToStatus:   lifecycle.StatusInProgress,
			Actor:      lifecycle.ActorEngine,
			Reason:     fmt.Sprintf("attempt %d/%d failed: %s", newCount, item.MaxAttempts, reason),
		}); err != nil {
			return err
		}
		if terminal {
			if err := ledger.Append(ctx, tx, ledger.Entry{
				ItemID:     id,
				Timestamp:  now,
				Kind:       ledger.KindTransition,
				FromStatus: lifecycle.StatusInProgress,
				ToStatus:   lifecycle.StatusFailed,
				Actor:      lifecycle.ActorEngine,
				Reason:     fmt.Sprintf("attempt budget exhausted after %d attempts", newCount),
			}); err != nil {
				return err
			}
		}

		item.AttemptCount = newCount
		item.Status = status
		item.LastError = reason
		item.LastHeartbeat = nil
		item.UpdatedAt = now
		result = item
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, terminal, nil
}

// RecordSuccess completes an in-progress item.
func (s *Store) RecordSuccess(ctx context.Context, id string, reason string) (*Item, error) {
	return s.Transition(ctx, id, lifecycle.StatusCompleted, lifecycle.ActorEngine, reason)
}

// Decide records a human approval decision. Only items currently awaiting
// approval accept a decision; anything else returns ErrNotAwaitingApproval so
// stale double-decisions are rejected rather than silently ignored.
func (s *Store) Decide(ctx context.Context, id string, approved bool, reason string) (*Item, error) {
	var result *Item
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		item, err := getByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if item.Status != lifecycle.StatusAwaitingApproval {
			return fmt.Errorf("%w: %s is %s", lifecycle.ErrNotAwaitingApproval, id, item.Status)
		}

		to := lifecycle.StatusRejected
		if approved {
			to = lifecycle.StatusInProgress
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(
			ctx,
			`UPDATE work_items
             SET approved = ?, status = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			boolToInt(approved),
			string(to),
			now.Format(time.RFC3339Nano),
			id,
			string(lifecycle.StatusAwaitingApproval),
		)
		if err != nil {
			return fmt.Errorf("record decision: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s decided concurrently", lifecycle.ErrNotAwaitingApproval, id)
		}

		if err := ledger.Append(ctx, tx, ledger.Entry{
			ItemID:     id,
			Timestamp:  now,
			Kind:       ledger.KindApproval,
			FromStatus: lifecycle.StatusAwaitingApproval,
			ToStatus:   to,
			Actor:      lifecycle.ActorHuman,
			Reason:     reason,
		}); err != nil {
			return err
		}

		decided := approved
		item.Approved = &decided
		item.Status = to
		item.UpdatedAt = now
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateHeartbeat bumps the heartbeat timestamp for an item being processed.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE work_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ClaimHeartbeat stamps an initial heartbeat so overlapping sweeps skip the
// item while a handler runs.
func (s *Store) ClaimHeartbeat(ctx context.Context, id string) error {
	return s.UpdateHeartbeat(ctx, id)
}

// ClearStaleHeartbeats forgets heartbeats older than the cutoff, returning
// crash-interrupted in-progress items to sweep eligibility. Run at daemon
// startup; the at-least-once handler contract makes the re-attempt safe.
func (s *Store) ClearStaleHeartbeats(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE work_items
         SET last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		string(lifecycle.StatusInProgress),
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("clear stale heartbeats: %w", err)
	}
	return res.RowsAffected()
}

// History returns the chronological ledger for one item. The item must exist.
func (s *Store) History(ctx context.Context, id string) ([]ledger.Entry, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return ledger.ForItem(ctx, s.db, id)
}

// LedgerBetween returns ledger entries recorded within [from, to).
func (s *Store) LedgerBetween(ctx context.Context, from, to time.Time) ([]ledger.Entry, error) {
	return ledger.Between(ctx, s.db, from, to)
}
