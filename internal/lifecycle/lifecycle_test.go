package lifecycle_test

import (
	"errors"
	"testing"

	"ratchet/internal/lifecycle"
)

func TestLegalTransitions(t *testing.T) {
	cases := []struct {
		from  lifecycle.Status
		to    lifecycle.Status
		legal bool
	}{
		{lifecycle.StatusPending, lifecycle.StatusAwaitingApproval, true},
		{lifecycle.StatusPending, lifecycle.StatusInProgress, true},
		{lifecycle.StatusPending, lifecycle.StatusCompleted, false},
		{lifecycle.StatusPending, lifecycle.StatusRejected, false},
		{lifecycle.StatusAwaitingApproval, lifecycle.StatusInProgress, true},
		{lifecycle.StatusAwaitingApproval, lifecycle.StatusRejected, true},
		{lifecycle.StatusAwaitingApproval, lifecycle.StatusCompleted, false},
		{lifecycle.StatusInProgress, lifecycle.StatusCompleted, true},
		{lifecycle.StatusInProgress, lifecycle.StatusFailed, true},
		{lifecycle.StatusInProgress, lifecycle.StatusPending, false},
		{lifecycle.StatusCompleted, lifecycle.StatusInProgress, false},
		{lifecycle.StatusFailed, lifecycle.StatusInProgress, false},
		{lifecycle.StatusRejected, lifecycle.StatusInProgress, false},
	}
	for _, tc := range cases {
		if got := lifecycle.CanTransition(tc.from, tc.to); got != tc.legal {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.legal)
		}
	}
}

func TestTerminalStatusesHaveNoSuccessors(t *testing.T) {
	for _, status := range lifecycle.AllStatuses() {
		next := lifecycle.NextStatuses(status)
		if status.Terminal() && len(next) != 0 {
			t.Errorf("terminal status %s has successors %v", status, next)
		}
		if !status.Terminal() && len(next) == 0 {
			t.Errorf("non-terminal status %s has no successors", status)
		}
	}
}

func TestValidateTransitionApprovalGuard(t *testing.T) {
	approved := true
	denied := false

	err := lifecycle.ValidateTransition(lifecycle.StatusAwaitingApproval, lifecycle.StatusInProgress, true, nil)
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for undecided item, got %v", err)
	}

	err = lifecycle.ValidateTransition(lifecycle.StatusAwaitingApproval, lifecycle.StatusInProgress, true, &denied)
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for denied item, got %v", err)
	}

	if err := lifecycle.ValidateTransition(lifecycle.StatusAwaitingApproval, lifecycle.StatusInProgress, true, &approved); err != nil {
		t.Fatalf("expected approved item to pass, got %v", err)
	}

	if err := lifecycle.ValidateTransition(lifecycle.StatusPending, lifecycle.StatusInProgress, false, nil); err != nil {
		t.Fatalf("expected non-gated item to pass, got %v", err)
	}
}

func TestStageStatusBijection(t *testing.T) {
	for _, status := range lifecycle.AllStatuses() {
		stage := lifecycle.StageFor(status)
		if stage == "" {
			t.Fatalf("status %s has no stage", status)
		}
		back, ok := lifecycle.StatusForStage(string(stage))
		if !ok {
			t.Fatalf("stage %s cannot be mapped back", stage)
		}
		if back != status {
			t.Fatalf("stage %s maps back to %s, want %s", stage, back, status)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if _, ok := lifecycle.ParseStatus("in_progress"); !ok {
		t.Fatal("expected in_progress to parse")
	}
	if _, ok := lifecycle.ParseStatus("sideways"); ok {
		t.Fatal("expected unknown status to fail parsing")
	}
}

func TestPriorityRankOrdering(t *testing.T) {
	ordered := []lifecycle.Priority{
		lifecycle.PriorityCritical,
		lifecycle.PriorityHigh,
		lifecycle.PriorityMedium,
		lifecycle.PriorityLow,
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Rank() >= ordered[i].Rank() {
			t.Fatalf("expected %s to rank before %s", ordered[i-1], ordered[i])
		}
	}
	if lifecycle.Priority("unknown").Rank() <= lifecycle.PriorityLow.Rank() {
		t.Fatal("expected unknown priority to rank after low")
	}
}
