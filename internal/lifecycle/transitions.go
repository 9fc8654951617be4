package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition marks a status change the graph does not allow.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnknownItem marks a reference to an item id the store has never seen.
	ErrUnknownItem = errors.New("unknown item")
	// ErrNotAwaitingApproval marks an approval decision against an item that
	// is not currently held at the approval gate.
	ErrNotAwaitingApproval = errors.New("item is not awaiting approval")
)

var legalTransitions = map[Status][]Status{
	StatusPending:          {StatusAwaitingApproval, StatusInProgress},
	StatusAwaitingApproval: {StatusInProgress, StatusRejected},
	StatusInProgress:       {StatusCompleted, StatusFailed},
}

// CanTransition reports whether the status graph contains the edge from -> to.
// Retry accounting re-records in_progress without moving it; that self edge is
// handled by the store, not here.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from the given status.
func NextStatuses(from Status) []Status {
	next := legalTransitions[from]
	cp := make([]Status, len(next))
	copy(cp, next)
	return cp
}

// ValidateTransition checks the edge and the approval guard. An item flagged
// requires_approval may only enter in_progress once a human decision recorded
// approved == true.
func ValidateTransition(from, to Status, requiresApproval bool, approved *bool) error {
	if _, ok := statusSet[to]; !ok {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if to == StatusInProgress && requiresApproval && (approved == nil || !*approved) {
		return fmt.Errorf("%w: %s -> %s requires recorded approval", ErrInvalidTransition, from, to)
	}
	return nil
}
