package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ratchet/internal/ledger"
	"ratchet/internal/lifecycle"
	"ratchet/internal/store"
	"ratchet/internal/testsupport"
)

func TestCreateAssignsDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := st.Create(ctx, store.NewItem{Kind: "inbound-message"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if item.ID == "" {
		t.Fatal("expected item ID to be assigned")
	}
	if item.Status != lifecycle.StatusPending {
		t.Fatalf("expected pending status, got %s", item.Status)
	}
	if item.Priority != lifecycle.PriorityMedium {
		t.Fatalf("expected medium priority, got %s", item.Priority)
	}
	if item.AttemptCount != 0 {
		t.Fatalf("expected zero attempt count, got %d", item.AttemptCount)
	}
	if item.MaxAttempts != cfg.Retry.MaxAttempts {
		t.Fatalf("expected max attempts %d, got %d", cfg.Retry.MaxAttempts, item.MaxAttempts)
	}
	if item.Approved != nil {
		t.Fatal("expected approved to start undecided")
	}
}

func TestCreateRejectsUnknownPriority(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	if _, err := st.Create(context.Background(), store.NewItem{Kind: "inbound-message", Priority: "urgent"}); err == nil {
		t.Fatal("expected error for unknown priority")
	}
}

func TestGetByIDUnknown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	_, err := st.GetByID(context.Background(), "no-such-id")
	if !errors.Is(err, lifecycle.ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
}

func TestListOrdersByPriority(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	low, err := st.Create(ctx, store.NewItem{Kind: "file-arrival", Priority: lifecycle.PriorityLow})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	critical, err := st.Create(ctx, store.NewItem{Kind: "file-arrival", Priority: lifecycle.PriorityCritical})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	items, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != critical.ID || items[1].ID != low.ID {
		t.Fatalf("expected critical before low, got %s then %s", items[0].Priority, items[1].Priority)
	}
}

func TestTransitionAppendsLedgerEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewItem(t, st, "inbound-message")

	updated, err := st.Transition(ctx, item.ID, lifecycle.StatusInProgress, lifecycle.ActorEngine, "routed")
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if updated.Status != lifecycle.StatusInProgress {
		t.Fatalf("expected in_progress, got %s", updated.Status)
	}

	entries, err := st.History(ctx, item.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Kind != ledger.KindTransition {
		t.Fatalf("expected transition entry, got %s", entry.Kind)
	}
	if entry.FromStatus != lifecycle.StatusPending || entry.ToStatus != lifecycle.StatusInProgress {
		t.Fatalf("unexpected transition %s -> %s", entry.FromStatus, entry.ToStatus)
	}
	if entry.Actor != lifecycle.ActorEngine {
		t.Fatalf("expected engine actor, got %s", entry.Actor)
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewItem(t, st, "inbound-message")

	_, err := st.Transition(ctx, item.ID, lifecycle.StatusCompleted, lifecycle.ActorEngine, "skip ahead")
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// A rejected transition must leave no trace.
	entries, err := st.History(ctx, item.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no ledger entries after rejected transition, got %d", len(entries))
	}
	current, err := st.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if current.Status != lifecycle.StatusPending {
		t.Fatalf("expected status unchanged, got %s", current.Status)
	}
}

func TestTransitionBlocksUndecidedApproval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewApprovalItem(t, st, "outbound-action")

	if _, err := st.Transition(ctx, item.ID, lifecycle.StatusAwaitingApproval, lifecycle.ActorEngine, "routed"); err != nil {
		t.Fatalf("route to awaiting_approval failed: %v", err)
	}
	_, err := st.Transition(ctx, item.ID, lifecycle.StatusInProgress, lifecycle.ActorEngine, "premature")
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition before decision, got %v", err)
	}
}

func TestDecideApprove(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewApprovalItem(t, st, "outbound-action")
	if _, err := st.Transition(ctx, item.ID, lifecycle.StatusAwaitingApproval, lifecycle.ActorEngine, "routed"); err != nil {
		t.Fatalf("route failed: %v", err)
	}

	decided, err := st.Decide(ctx, item.ID, true, "looks good")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decided.Status != lifecycle.StatusInProgress {
		t.Fatalf("expected in_progress after approval, got %s", decided.Status)
	}
	if decided.Approved == nil || !*decided.Approved {
		t.Fatal("expected approved flag set true")
	}

	entries, err := st.History(ctx, item.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	last := entries[len(entries)-1]
	if last.Kind != ledger.KindApproval {
		t.Fatalf("expected approval entry, got %s", last.Kind)
	}
	if last.Actor != lifecycle.ActorHuman {
		t.Fatalf("expected human actor, got %s", last.Actor)
	}
}

func TestDecideRejectIsTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewApprovalItem(t, st, "outbound-action")
	if _, err := st.Transition(ctx, item.ID, lifecycle.StatusAwaitingApproval, lifecycle.ActorEngine, "routed"); err != nil {
		t.Fatalf("route failed: %v", err)
	}

	decided, err := st.Decide(ctx, item.ID, false, "not safe")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decided.Status != lifecycle.StatusRejected {
		t.Fatalf("expected rejected, got %s", decided.Status)
	}
	if !decided.Status.Terminal() {
		t.Fatal("expected rejected to be terminal")
	}

	// No path out of rejected, not even a second decision.
	if _, err := st.Decide(ctx, item.ID, true, "changed my mind"); !errors.Is(err, lifecycle.ErrNotAwaitingApproval) {
		t.Fatalf("expected ErrNotAwaitingApproval on double decide, got %v", err)
	}
}

func TestDecideRequiresAwaitingApproval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewItem(t, st, "inbound-message")

	if _, err := st.Decide(ctx, item.ID, true, "premature"); !errors.Is(err, lifecycle.ErrNotAwaitingApproval) {
		t.Fatalf("expected ErrNotAwaitingApproval for pending item, got %v", err)
	}
	if _, err := st.Decide(ctx, "missing", true, ""); !errors.Is(err, lifecycle.ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
}

func TestRecordFailureIncrementsAndExhausts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(3))
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewItem(t, st, "inbound-message")
	if _, err := st.Transition(ctx, item.ID, lifecycle.StatusInProgress, lifecycle.ActorEngine, "routed"); err != nil {
		t.Fatalf("route failed: %v", err)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		updated, terminal, err := st.RecordFailure(ctx, item.ID, attempt-1, "handler exploded")
		if err != nil {
			t.Fatalf("RecordFailure %d failed: %v", attempt, err)
		}
		if updated.AttemptCount != attempt {
			t.Fatalf("expected attempt count %d, got %d", attempt, updated.AttemptCount)
		}
		if attempt < 3 {
			if terminal {
				t.Fatalf("attempt %d should not exhaust the budget", attempt)
			}
			if updated.Status != lifecycle.StatusInProgress {
				t.Fatalf("expected in_progress after attempt %d, got %s", attempt, updated.Status)
			}
		} else {
			if !terminal {
				t.Fatal("expected budget exhaustion on final attempt")
			}
			if updated.Status != lifecycle.StatusFailed {
				t.Fatalf("expected failed, got %s", updated.Status)
			}
		}
	}

	entries, err := st.History(ctx, item.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	var retries, transitions int
	for _, entry := range entries {
		switch entry.Kind {
		case ledger.KindRetry:
			retries++
		case ledger.KindTransition:
			transitions++
		}
	}
	if retries != 3 {
		t.Fatalf("expected 3 retry entries, got %d", retries)
	}
	// Routing entry plus the terminal failure entry.
	if transitions != 2 {
		t.Fatalf("expected 2 transition entries, got %d", transitions)
	}

	// A failed item accepts no further attempts.
	if _, _, err := st.RecordFailure(ctx, item.ID, 3, "again"); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition after exhaustion, got %v", err)
	}
}

func TestConcurrentFailureAccountingNeverDoubleCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(10))
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewItem(t, st, "inbound-message")
	if _, err := st.Transition(ctx, item.ID, lifecycle.StatusInProgress, lifecycle.ActorEngine, "routed"); err != nil {
		t.Fatalf("route failed: %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			// Every racer saw the same pre-failure attempt count.
			_, _, errs[slot] = st.RecordFailure(ctx, item.ID, 0, "race")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, lifecycle.ErrInvalidTransition) {
			t.Fatalf("unexpected error from racing failure: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one racer to record the attempt, got %d", succeeded)
	}

	current, err := st.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if current.AttemptCount != 1 {
		t.Fatalf("expected attempt count 1 after race, got %d", current.AttemptCount)
	}
}

func TestRecordSuccessCompletes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewItem(t, st, "inbound-message")
	if _, err := st.Transition(ctx, item.ID, lifecycle.StatusInProgress, lifecycle.ActorEngine, "routed"); err != nil {
		t.Fatalf("route failed: %v", err)
	}

	updated, err := st.RecordSuccess(ctx, item.ID, "done")
	if err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}
	if updated.Status != lifecycle.StatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
	if updated.Stage() != lifecycle.StageCompleted {
		t.Fatalf("expected completed stage, got %s", updated.Stage())
	}
}

func TestLedgerBetweenWindow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	before := time.Now().UTC().Add(-time.Minute)
	item := testsupport.NewItem(t, st, "inbound-message")
	if _, err := st.Transition(ctx, item.ID, lifecycle.StatusInProgress, lifecycle.ActorEngine, "routed"); err != nil {
		t.Fatalf("route failed: %v", err)
	}
	after := time.Now().UTC().Add(time.Minute)

	entries, err := st.LedgerBetween(ctx, before, after)
	if err != nil {
		t.Fatalf("LedgerBetween failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry in window, got %d", len(entries))
	}

	empty, err := st.LedgerBetween(ctx, after, after.Add(time.Minute))
	if err != nil {
		t.Fatalf("LedgerBetween failed: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no entries outside window, got %d", len(empty))
	}
}

func TestHistoryUnknownItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	if _, err := st.History(context.Background(), "missing"); !errors.Is(err, lifecycle.ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
}

func TestNextEligibleSkipsLiveHeartbeats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewItem(t, st, "inbound-message")
	if _, err := st.Transition(ctx, item.ID, lifecycle.StatusInProgress, lifecycle.ActorEngine, "routed"); err != nil {
		t.Fatalf("route failed: %v", err)
	}

	// Without a heartbeat the item is eligible.
	staleBefore := time.Now().UTC().Add(-time.Minute)
	items, err := st.NextEligible(ctx, staleBefore)
	if err != nil {
		t.Fatalf("NextEligible failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 eligible item, got %d", len(items))
	}

	if err := st.ClaimHeartbeat(ctx, item.ID); err != nil {
		t.Fatalf("ClaimHeartbeat failed: %v", err)
	}
	items, err = st.NextEligible(ctx, staleBefore)
	if err != nil {
		t.Fatalf("NextEligible failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected live heartbeat to hide item, got %d eligible", len(items))
	}

	// A stale cutoff in the future reclaims it.
	items, err = st.NextEligible(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("NextEligible failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected stale item to be eligible again, got %d", len(items))
	}
}

func TestClearStaleHeartbeats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewItem(t, st, "inbound-message")
	if _, err := st.Transition(ctx, item.ID, lifecycle.StatusInProgress, lifecycle.ActorEngine, "routed"); err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if err := st.ClaimHeartbeat(ctx, item.ID); err != nil {
		t.Fatalf("ClaimHeartbeat failed: %v", err)
	}

	cleared, err := st.ClearStaleHeartbeats(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("ClearStaleHeartbeats failed: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared heartbeat, got %d", cleared)
	}

	current, err := st.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if current.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared")
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	ctx := context.Background()
	item, err := st.Create(ctx, store.NewItem{Kind: "file-arrival", Payload: "hello"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := st.Transition(ctx, item.ID, lifecycle.StatusInProgress, lifecycle.ActorEngine, "routed"); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	restored, err := reopened.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID after reopen failed: %v", err)
	}
	if restored.Status != lifecycle.StatusInProgress || restored.Payload != "hello" {
		t.Fatalf("state not restored: %#v", restored)
	}
	entries, err := reopened.History(ctx, item.ID)
	if err != nil {
		t.Fatalf("History after reopen failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected ledger to survive reopen, got %d entries", len(entries))
	}
}
