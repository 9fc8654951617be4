package ipc

import (
	"time"

	"ratchet/internal/ledger"
	"ratchet/internal/store"
)

// FromItem converts a store item into its wire representation. Used by the
// server and by CLI code paths that read the store directly.
func FromItem(item *store.Item) ItemView {
	view := ItemView{
		ID:               item.ID,
		Kind:             string(item.Kind),
		Priority:         string(item.Priority),
		Status:           string(item.Status),
		Stage:            string(item.Stage()),
		RequiresApproval: item.RequiresApproval,
		AttemptCount:     item.AttemptCount,
		MaxAttempts:      item.MaxAttempts,
		Payload:          item.Payload,
		LastError:        item.LastError,
		CreatedAt:        item.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:        item.UpdatedAt.Format(time.RFC3339Nano),
	}
	if item.Approved != nil {
		approved := *item.Approved
		view.Approved = &approved
	}
	return view
}

// FromItems converts a slice of store items.
func FromItems(items []*store.Item) []ItemView {
	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, FromItem(item))
	}
	return views
}

// FromEntry converts a ledger entry into its wire representation.
func FromEntry(entry ledger.Entry) LedgerEntryView {
	return LedgerEntryView{
		ID:         entry.ID,
		ItemID:     entry.ItemID,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Kind:       string(entry.Kind),
		FromStatus: string(entry.FromStatus),
		ToStatus:   string(entry.ToStatus),
		Actor:      string(entry.Actor),
		Reason:     entry.Reason,
	}
}

// FromEntries converts a slice of ledger entries.
func FromEntries(entries []ledger.Entry) []LedgerEntryView {
	views := make([]LedgerEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, FromEntry(entry))
	}
	return views
}
