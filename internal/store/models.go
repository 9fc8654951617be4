package store

import (
	"time"

	"ratchet/internal/lifecycle"
)

// Item represents a work item persisted in SQLite.
type Item struct {
	ID               string
	Kind             lifecycle.Kind
	Priority         lifecycle.Priority
	Status           lifecycle.Status
	RequiresApproval bool
	Approved         *bool
	AttemptCount     int
	MaxAttempts      int
	Payload          string
	LastError        string
	LastHeartbeat    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Stage returns the stage implied by the item's status.
func (i *Item) Stage() lifecycle.Stage {
	return lifecycle.StageFor(i.Status)
}

// Terminal reports whether the item has reached a terminal status.
func (i *Item) Terminal() bool {
	return i.Status.Terminal()
}

// BudgetExhausted reports whether the attempt budget has been consumed.
func (i *Item) BudgetExhausted() bool {
	return i.AttemptCount >= i.MaxAttempts
}

// NewItem describes a work item to be created by a producer.
type NewItem struct {
	Kind             lifecycle.Kind
	Priority         lifecycle.Priority
	RequiresApproval bool
	Payload          string

	// MaxAttempts overrides the store default when positive.
	MaxAttempts int
}

// Stats is a count of items grouped by status.
type Stats map[lifecycle.Status]int

// Total sums all counted items.
func (s Stats) Total() int {
	total := 0
	for _, count := range s {
		total += count
	}
	return total
}
