package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ratchet/internal/lifecycle"
)

// Kind classifies a ledger entry.
type Kind string

const (
	// KindTransition records a status change applied by the transition engine.
	KindTransition Kind = "transition"
	// KindRetry records a failed processing attempt that left the item
	// eligible for another pass.
	KindRetry Kind = "retry"
	// KindApproval records a human approval or rejection decision.
	KindApproval Kind = "approval"
)

// Entry is one immutable audit record.
type Entry struct {
	ID         int64
	ItemID     string
	Timestamp  time.Time
	Kind       Kind
	FromStatus lifecycle.Status
	ToStatus   lifecycle.Status
	Actor      lifecycle.Actor
	Reason     string
}

// Querier is the subset of database/sql used for reads. Both *sql.DB and
// *sql.Tx satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const entryColumns = "id, item_id, ts, kind, from_status, to_status, actor, reason"

// Append writes an entry inside the caller's transaction so the audit record
// commits or rolls back with the mutation it describes.
func Append(ctx context.Context, tx *sql.Tx, entry Entry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO ledger_entries (item_id, ts, kind, from_status, to_status, actor, reason)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ItemID,
		ts.UTC().Format(time.RFC3339Nano),
		string(entry.Kind),
		string(entry.FromStatus),
		string(entry.ToStatus),
		string(entry.Actor),
		entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// ForItem returns the chronological history of one item.
func ForItem(ctx context.Context, q Querier, itemID string) ([]Entry, error) {
	rows, err := q.QueryContext(
		ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE item_id = ? ORDER BY id`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("query item history: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// Between returns entries recorded within [from, to), newest last. Zero bounds
// are open on that side.
func Between(ctx context.Context, q Querier, from, to time.Time) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries`
	var (
		clauses []string
		args    []any
	)
	if !from.IsZero() {
		clauses = append(clauses, "ts >= ?")
		args = append(args, from.UTC().Format(time.RFC3339Nano))
	}
	if !to.IsZero() {
		clauses = append(clauses, "ts < ?")
		args = append(args, to.UTC().Format(time.RFC3339Nano))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger range: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			entry Entry
			tsRaw string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.ItemID,
			&tsRaw,
			(*string)(&entry.Kind),
			(*string)(&entry.FromStatus),
			(*string)(&entry.ToStatus),
			(*string)(&entry.Actor),
			&entry.Reason,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, tsRaw); err == nil {
			entry.Timestamp = ts
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
