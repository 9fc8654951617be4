package lifecycle

import "strings"

// Status represents the lifecycle of a work item.
type Status string

const (
	StatusPending          Status = "pending"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusInProgress       Status = "in_progress"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusRejected         Status = "rejected"
)

var allStatuses = []Status{
	StatusPending,
	StatusAwaitingApproval,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
	StatusRejected,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusRejected:  {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether a status has no outgoing transitions.
func (s Status) Terminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Stage identifies the partition a work item occupies. Stages map one-to-one
// onto statuses and are always derived, never stored.
type Stage string

const (
	StageIncoming   Stage = "incoming"
	StageApproval   Stage = "approval"
	StageProcessing Stage = "processing"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
	StageRejected   Stage = "rejected"
)

var stageByStatus = map[Status]Stage{
	StatusPending:          StageIncoming,
	StatusAwaitingApproval: StageApproval,
	StatusInProgress:       StageProcessing,
	StatusCompleted:        StageCompleted,
	StatusFailed:           StageFailed,
	StatusRejected:         StageRejected,
}

var statusByStage = func() map[Stage]Status {
	m := make(map[Stage]Status, len(stageByStatus))
	for status, stage := range stageByStatus {
		m[stage] = status
	}
	return m
}()

// StageFor returns the stage implied by a status.
func StageFor(status Status) Stage {
	return stageByStatus[status]
}

// StatusForStage returns the status backing a stage name.
func StatusForStage(value string) (Status, bool) {
	status, ok := statusByStage[Stage(strings.ToLower(strings.TrimSpace(value)))]
	return status, ok
}

// AllStages returns the ordered list of stages.
func AllStages() []Stage {
	stages := make([]Stage, 0, len(allStatuses))
	for _, status := range allStatuses {
		stages = append(stages, stageByStatus[status])
	}
	return stages
}

// Actor identifies who recorded a state change.
type Actor string

const (
	ActorEngine Actor = "engine"
	ActorHuman  Actor = "human"
	ActorSystem Actor = "system"
)
