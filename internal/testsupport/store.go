package testsupport

import (
	"context"
	"testing"

	"ratchet/internal/config"
	"ratchet/internal/lifecycle"
	"ratchet/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewItem creates a work item of the given kind for tests.
func NewItem(t testing.TB, st *store.Store, kind lifecycle.Kind) *store.Item {
	t.Helper()

	item, err := st.Create(context.Background(), store.NewItem{Kind: kind})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return item
}

// NewApprovalItem creates a work item that requires human approval.
func NewApprovalItem(t testing.TB, st *store.Store, kind lifecycle.Kind) *store.Item {
	t.Helper()

	item, err := st.Create(context.Background(), store.NewItem{Kind: kind, RequiresApproval: true})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return item
}
