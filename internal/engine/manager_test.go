package engine_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ratchet/internal/engine"
	"ratchet/internal/handler"
	"ratchet/internal/ledger"
	"ratchet/internal/lifecycle"
	"ratchet/internal/logging"
	"ratchet/internal/store"
	"ratchet/internal/testsupport"
)

func TestSweepCompletesItemInOnePass(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	registry := handler.NewRegistry()
	var calls atomic.Int32
	registry.Register("inbound-message", handler.Func(func(ctx context.Context, item *store.Item, hint string) error {
		calls.Add(1)
		return nil
	}))
	mgr := engine.NewManagerWithAdvisor(cfg, st, registry, engine.NopAdvisor{}, logging.NewNop())

	ctx := context.Background()
	item := testsupport.NewItem(t, st, "inbound-message")

	if err := mgr.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 handler call, got %d", got)
	}

	final, err := st.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Status != lifecycle.StatusCompleted {
		t.Fatalf("expected completed after one sweep, got %s", final.Status)
	}

	entries, err := st.History(ctx, item.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	if entries[0].ToStatus != lifecycle.StatusInProgress || entries[1].ToStatus != lifecycle.StatusCompleted {
		t.Fatalf("unexpected transition order: %s then %s", entries[0].ToStatus, entries[1].ToStatus)
	}
}

func TestSweepExhaustsAttemptBudget(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(3))
	st := testsupport.MustOpenStore(t, cfg)

	registry := handler.NewRegistry()
	registry.Register("inbound-message", handler.Func(func(ctx context.Context, item *store.Item, hint string) error {
		return errors.New("downstream unavailable")
	}))
	mgr := engine.NewManagerWithAdvisor(cfg, st, registry, engine.NopAdvisor{}, logging.NewNop())

	ctx := context.Background()
	item := testsupport.NewItem(t, st, "inbound-message")

	for sweep := 0; sweep < 3; sweep++ {
		if err := mgr.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce %d failed: %v", sweep, err)
		}
	}

	final, err := st.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Status != lifecycle.StatusFailed {
		t.Fatalf("expected failed after 3 sweeps, got %s", final.Status)
	}
	if final.AttemptCount != 3 {
		t.Fatalf("expected attempt count 3, got %d", final.AttemptCount)
	}

	entries, err := st.History(ctx, item.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	var retries int
	var terminal bool
	for _, entry := range entries {
		if entry.Kind == ledger.KindRetry {
			retries++
		}
		if entry.Kind == ledger.KindTransition && entry.ToStatus == lifecycle.StatusFailed {
			terminal = true
		}
	}
	if retries != 3 {
		t.Fatalf("expected 3 retry entries, got %d", retries)
	}
	if !terminal {
		t.Fatal("expected a terminal failure transition entry")
	}

	// Further sweeps leave the failed item alone.
	if err := mgr.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce after exhaustion failed: %v", err)
	}
	final, err = st.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.AttemptCount != 3 {
		t.Fatalf("expected no further attempts, got %d", final.AttemptCount)
	}
}

func TestApprovalGateHoldsUntilDecision(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	registry := handler.NewRegistry()
	var calls atomic.Int32
	registry.Register("outbound-action", handler.Func(func(ctx context.Context, item *store.Item, hint string) error {
		calls.Add(1)
		return nil
	}))
	mgr := engine.NewManagerWithAdvisor(cfg, st, registry, engine.NopAdvisor{}, logging.NewNop())

	ctx := context.Background()
	item := testsupport.NewApprovalItem(t, st, "outbound-action")

	// Sweeps park the item at the gate and never run the handler.
	for i := 0; i < 3; i++ {
		if err := mgr.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce failed: %v", err)
		}
	}
	if got := calls.Load(); got != 0 {
		t.Fatalf("handler ran %d times before approval", got)
	}
	held, err := st.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if held.Status != lifecycle.StatusAwaitingApproval {
		t.Fatalf("expected awaiting_approval, got %s", held.Status)
	}

	if _, err := st.Decide(ctx, item.ID, true, "approved in test"); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if err := mgr.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce after approval failed: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 handler call after approval, got %d", got)
	}
	final, err := st.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Status != lifecycle.StatusCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}
}

func TestRejectionIsTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	registry := handler.NewRegistry()
	var calls atomic.Int32
	registry.Register("outbound-action", handler.Func(func(ctx context.Context, item *store.Item, hint string) error {
		calls.Add(1)
		return nil
	}))
	mgr := engine.NewManagerWithAdvisor(cfg, st, registry, engine.NopAdvisor{}, logging.NewNop())

	ctx := context.Background()
	item := testsupport.NewApprovalItem(t, st, "outbound-action")
	if err := mgr.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if _, err := st.Decide(ctx, item.ID, false, "too risky"); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if err := mgr.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce after rejection failed: %v", err)
	}
	if got := calls.Load(); got != 0 {
		t.Fatalf("handler ran %d times for rejected item", got)
	}
	final, err := st.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if final.Status != lifecycle.StatusRejected {
		t.Fatalf("expected rejected, got %s", final.Status)
	}
	if _, err := st.Decide(ctx, item.ID, true, "second thoughts"); !errors.Is(err, lifecycle.ErrNotAwaitingApproval) {
		t.Fatalf("expected ErrNotAwaitingApproval on double decide, got %v", err)
	}
}

func TestMissingHandlerSkipsWithoutConsumingBudget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	mgr := engine.NewManagerWithAdvisor(cfg, st, handler.NewRegistry(), engine.NopAdvisor{}, logging.NewNop())

	ctx := context.Background()
	item := testsupport.NewItem(t, st, "unhandled-kind")

	for i := 0; i < 2; i++ {
		if err := mgr.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce failed: %v", err)
		}
	}

	current, err := st.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if current.Status != lifecycle.StatusInProgress {
		t.Fatalf("expected item to stay in progress, got %s", current.Status)
	}
	if current.AttemptCount != 0 {
		t.Fatalf("expected no attempts consumed, got %d", current.AttemptCount)
	}
}

func TestHandlerTimeoutCountsAsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Engine.HandlerTimeout = 1
	st := testsupport.MustOpenStore(t, cfg)

	registry := handler.NewRegistry()
	registry.Register("inbound-message", handler.Func(func(ctx context.Context, item *store.Item, hint string) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	mgr := engine.NewManagerWithAdvisor(cfg, st, registry, engine.NopAdvisor{}, logging.NewNop())

	ctx := context.Background()
	item := testsupport.NewItem(t, st, "inbound-message")
	if err := mgr.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	current, err := st.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if current.AttemptCount != 1 {
		t.Fatalf("expected timeout to count as one attempt, got %d", current.AttemptCount)
	}
	if current.LastError == "" {
		t.Fatal("expected last error recorded for timeout")
	}
}

func TestShutdownDoesNotConsumeAttempt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	started := make(chan struct{})
	registry := handler.NewRegistry()
	registry.Register("inbound-message", handler.Func(func(ctx context.Context, item *store.Item, hint string) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	mgr := engine.NewManagerWithAdvisor(cfg, st, registry, engine.NopAdvisor{}, logging.NewNop())

	item := testsupport.NewItem(t, st, "inbound-message")

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.RunOnce(runCtx) }()

	<-started
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected RunOnce error: %v", err)
	}

	current, err := st.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if current.AttemptCount != 0 {
		t.Fatalf("shutdown consumed an attempt: %d", current.AttemptCount)
	}
}

func TestSweepDispatchesConcurrently(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(4))
	st := testsupport.MustOpenStore(t, cfg)

	const items = 4
	var mu sync.Mutex
	inFlight, peak := 0, 0
	registry := handler.NewRegistry()
	registry.Register("inbound-message", handler.Func(func(ctx context.Context, item *store.Item, hint string) error {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(50 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	}))
	mgr := engine.NewManagerWithAdvisor(cfg, st, registry, engine.NopAdvisor{}, logging.NewNop())

	ctx := context.Background()
	for i := 0; i < items; i++ {
		testsupport.NewItem(t, st, "inbound-message")
	}
	if err := mgr.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if peak < 2 {
		t.Fatalf("expected concurrent dispatch, peak in-flight was %d", peak)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[lifecycle.StatusCompleted] != items {
		t.Fatalf("expected %d completed items, got %d", items, stats[lifecycle.StatusCompleted])
	}
}

func TestLedgerAdvisorSuggestsAlternate(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(10), testsupport.WithStrategyThreshold(2))
	st := testsupport.MustOpenStore(t, cfg)

	hints := make(chan string, 16)
	registry := handler.NewRegistry()
	registry.Register("inbound-message", handler.Func(func(ctx context.Context, item *store.Item, hint string) error {
		hints <- hint
		return errors.New("still broken")
	}))
	mgr := engine.NewManager(cfg, st, registry, logging.NewNop())

	ctx := context.Background()
	testsupport.NewItem(t, st, "inbound-message")

	var seen []string
	for sweep := 0; sweep < 3; sweep++ {
		if err := mgr.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce failed: %v", err)
		}
		seen = append(seen, <-hints)
	}

	if seen[0] != "" || seen[1] != "" {
		t.Fatalf("expected empty hints below threshold, got %q then %q", seen[0], seen[1])
	}
	if seen[2] != engine.HintAlternate {
		t.Fatalf("expected alternate hint at threshold, got %q", seen[2])
	}
}

func TestStartClearsStaleHeartbeats(t *testing.T) {
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

	done := make(chan struct{})
	registry := handler.NewRegistry()
	registry.Register("inbound-message", handler.Func(func(ctx context.Context, item *store.Item, hint string) error {
		close(done)
		return nil
	}))
	mgr := engine.NewManagerWithAdvisor(cfg, st, registry, engine.NopAdvisor{}, logging.NewNop())

	// ClaimHeartbeat just stamped the item, so only the startup reclaim can
	// make it eligible this quickly.
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer mgr.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("crash-interrupted item was not reclaimed")
	}
}
