// Package ledger records every transition, retry, and approval decision as an
// immutable audit entry. Entries are appended inside the same transaction as
// the work item mutation they describe; no update or delete operation exists.
package ledger
