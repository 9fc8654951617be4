package lifecycle

import "strings"

// Priority orders work within a stage. It is advisory for throughput, not a
// correctness requirement.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

// ParsePriority converts a string into a known Priority.
func ParsePriority(value string) (Priority, bool) {
	normalized := Priority(strings.ToLower(strings.TrimSpace(value)))
	_, ok := priorityRank[normalized]
	return normalized, ok
}

// Rank returns the dispatch order of a priority; lower runs first. Unknown
// priorities sort after low.
func (p Priority) Rank() int {
	rank, ok := priorityRank[p]
	if !ok {
		return len(priorityRank)
	}
	return rank
}

// Kind describes a work item's origin or purpose. The set is open; these are
// the kinds the surrounding system produces today.
type Kind string

const (
	KindInboundMessage Kind = "inbound-message"
	KindFileArrival    Kind = "file-arrival"
	KindOutboundAction Kind = "outbound-action"
)
