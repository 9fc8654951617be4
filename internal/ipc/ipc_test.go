package ipc_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ratchet/internal/daemon"
	"ratchet/internal/engine"
	"ratchet/internal/handler"
	"ratchet/internal/ipc"
	"ratchet/internal/lifecycle"
	"ratchet/internal/logging"
	"ratchet/internal/testsupport"
)

func startServer(t *testing.T) *ipc.Client {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	mgr := engine.NewManagerWithAdvisor(cfg, st, handler.NewRegistry(), engine.NopAdvisor{}, logging.NewNop())
	d, err := daemon.New(cfg, st, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	socket := filepath.Join(cfg.Paths.LogDir, "test.sock")
	server, err := ipc.NewServer(context.Background(), socket, d, logging.NewNop())
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestStatusRoundTrip(t *testing.T) {
	client := startServer(t)

	resp, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if resp.Running {
		t.Fatal("expected daemon to report not running")
	}
	if resp.DatabasePath == "" {
		t.Fatal("expected database path in status")
	}
}

func TestItemLifecycleOverIPC(t *testing.T) {
	client := startServer(t)

	created, err := client.ItemCreate(ipc.ItemCreateRequest{
		Kind:             "outbound-action",
		Priority:         "high",
		RequiresApproval: true,
		Payload:          `{"target":"invoice-42"}`,
	})
	if err != nil {
		t.Fatalf("ItemCreate failed: %v", err)
	}
	id := created.Item.ID
	if id == "" {
		t.Fatal("expected created item id")
	}
	if created.Item.Status != string(lifecycle.StatusPending) {
		t.Fatalf("expected pending, got %s", created.Item.Status)
	}

	// Routing pass parks the item at the approval gate.
	if _, err := client.Sweep(); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	approvals, err := client.ApprovalList()
	if err != nil {
		t.Fatalf("ApprovalList failed: %v", err)
	}
	if len(approvals.Items) != 1 || approvals.Items[0].ID != id {
		t.Fatalf("expected item awaiting approval, got %+v", approvals.Items)
	}

	decided, err := client.Decide(id, true, "ship it")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decided.Item.Status != string(lifecycle.StatusInProgress) {
		t.Fatalf("expected in_progress after approval, got %s", decided.Item.Status)
	}

	history, err := client.History(id)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history.Entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(history.Entries))
	}

	listed, err := client.ItemList([]string{string(lifecycle.StatusInProgress)})
	if err != nil {
		t.Fatalf("ItemList failed: %v", err)
	}
	if len(listed.Items) != 1 {
		t.Fatalf("expected 1 in-progress item, got %d", len(listed.Items))
	}

	shown, err := client.ItemDescribe(id)
	if err != nil {
		t.Fatalf("ItemDescribe failed: %v", err)
	}
	if shown.Item.Stage != string(lifecycle.StageProcessing) {
		t.Fatalf("expected processing stage, got %s", shown.Item.Stage)
	}
}

func TestSentinelErrorsSurviveTransport(t *testing.T) {
	client := startServer(t)

	_, err := client.ItemDescribe("no-such-item")
	if !errors.Is(err, lifecycle.ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem over IPC, got %v", err)
	}

	created, err := client.ItemCreate(ipc.ItemCreateRequest{Kind: "inbound-message"})
	if err != nil {
		t.Fatalf("ItemCreate failed: %v", err)
	}
	_, err = client.Decide(created.Item.ID, true, "premature")
	if !errors.Is(err, lifecycle.ErrNotAwaitingApproval) {
		t.Fatalf("expected ErrNotAwaitingApproval over IPC, got %v", err)
	}
}

func TestItemListRejectsUnknownStatus(t *testing.T) {
	client := startServer(t)

	if _, err := client.ItemList([]string{"sideways"}); err == nil {
		t.Fatal("expected error for unknown status filter")
	}
}
