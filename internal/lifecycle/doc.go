// Package lifecycle defines the work item status graph and the pure rules
// derived from it: stage projection, priority ordering, and transition
// validation.
//
// Nothing in this package touches storage. The store enforces these rules
// transactionally; every other component consumes them read-only. When you
// add a status, extend the transition table here and bump the store schema.
package lifecycle
