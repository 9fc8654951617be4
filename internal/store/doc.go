// Package store persists work items in SQLite and is the single source of
// truth for their lifecycle.
//
// Every mutation — transition, retry accounting, approval decision — runs in
// one transaction that updates the item row and appends the matching ledger
// entry, so readers never observe a status without its audit record. Stage is
// derived from status on read and never stored, which removes any window where
// the two could disagree.
//
// Treat this package as authoritative for item semantics; when you add fields,
// update schema.sql and bump schemaVersion.
package store
