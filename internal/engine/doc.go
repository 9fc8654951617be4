// Package engine advances work items through their lifecycle.
//
// The Manager sweeps the store at a fixed interval (or on demand via Kick),
// routes newly created items into their initial stage, and dispatches
// in-progress items to per-kind handlers through a bounded worker pool. Failed
// attempts are accounted against each item's budget; exhausting the budget is
// a designed terminal outcome, not an error. Heartbeats mark items a handler
// is actively working on so overlapping sweeps and post-crash restarts never
// double-dispatch live work.
package engine
