package ipc

// ItemView is the wire representation of a work item.
type ItemView struct {
	ID               string `json:"id"`
	Kind             string `json:"kind"`
	Priority         string `json:"priority"`
	Status           string `json:"status"`
	Stage            string `json:"stage"`
	RequiresApproval bool   `json:"requires_approval"`
	Approved         *bool  `json:"approved,omitempty"`
	AttemptCount     int    `json:"attempt_count"`
	MaxAttempts      int    `json:"max_attempts"`
	Payload          string `json:"payload,omitempty"`
	LastError        string `json:"last_error,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// LedgerEntryView is the wire representation of one ledger entry.
type LedgerEntryView struct {
	ID         int64  `json:"id"`
	ItemID     string `json:"item_id"`
	Timestamp  string `json:"timestamp"`
	Kind       string `json:"kind"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Actor      string `json:"actor"`
	Reason     string `json:"reason,omitempty"`
}

// HandlerHealth describes readiness of a registered handler.
type HandlerHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/engine status information.
type StatusResponse struct {
	Running       bool            `json:"running"`
	PID           int             `json:"pid"`
	InFlight      int             `json:"in_flight"`
	ItemStats     map[string]int  `json:"item_stats"`
	LastError     string          `json:"last_error"`
	DatabasePath  string          `json:"database_path"`
	LockPath      string          `json:"lock_path"`
	HandlerHealth []HandlerHealth `json:"handler_health"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// SweepRequest triggers an immediate sweep pass.
type SweepRequest struct{}

// SweepResponse acknowledges the sweep request.
type SweepResponse struct {
	Triggered bool `json:"triggered"`
}

// ItemCreateRequest registers a new work item.
type ItemCreateRequest struct {
	Kind             string `json:"kind"`
	Priority         string `json:"priority"`
	RequiresApproval bool   `json:"requires_approval"`
	Payload          string `json:"payload"`
	MaxAttempts      int    `json:"max_attempts"`
}

// ItemCreateResponse returns the created item.
type ItemCreateResponse struct {
	Item ItemView `json:"item"`
}

// ItemListRequest filters item listing by status.
type ItemListRequest struct {
	Statuses []string `json:"statuses"`
}

// ItemListResponse contains listed items.
type ItemListResponse struct {
	Items []ItemView `json:"items"`
}

// ItemDescribeRequest fetches a single item by id.
type ItemDescribeRequest struct {
	ID string `json:"id"`
}

// ItemDescribeResponse contains a single item.
type ItemDescribeResponse struct {
	Item ItemView `json:"item"`
}

// HistoryRequest fetches the ledger for one item.
type HistoryRequest struct {
	ID string `json:"id"`
}

// HistoryResponse contains the item's ledger entries in order.
type HistoryResponse struct {
	Entries []LedgerEntryView `json:"entries"`
}

// LedgerRequest fetches ledger entries in a time window. Empty bounds are
// open.
type LedgerRequest struct {
	Since string `json:"since"`
	Until string `json:"until"`
}

// LedgerResponse contains the matching ledger entries.
type LedgerResponse struct {
	Entries []LedgerEntryView `json:"entries"`
}

// ApprovalListRequest lists items awaiting a decision.
type ApprovalListRequest struct{}

// ApprovalListResponse contains items awaiting approval.
type ApprovalListResponse struct {
	Items []ItemView `json:"items"`
}

// DecideRequest records an approval decision.
type DecideRequest struct {
	ID       string `json:"id"`
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// DecideResponse returns the decided item.
type DecideResponse struct {
	Item ItemView `json:"item"`
}
