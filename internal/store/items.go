package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ratchet/internal/lifecycle"
)

// Create inserts a new work item with status pending and a zero attempt
// count. Safe for concurrent producers; ids are globally unique.
func (s *Store) Create(ctx context.Context, spec NewItem) (*Item, error) {
	if spec.Kind == "" {
		return nil, errors.New("item kind is required")
	}
	priority := spec.Priority
	if priority == "" {
		priority = lifecycle.PriorityMedium
	}
	if _, ok := lifecycle.ParsePriority(string(priority)); !ok {
		return nil, fmt.Errorf("unknown priority %q", priority)
	}
	maxAttempts := spec.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.defaultMaxAttempts
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO work_items (
            id, kind, priority, status, requires_approval, approved,
            attempt_count, max_attempts, payload, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, NULL, 0, ?, ?, ?, ?)`,
		id,
		string(spec.Kind),
		string(priority),
		string(lifecycle.StatusPending),
		boolToInt(spec.RequiresApproval),
		maxAttempts,
		nullableString(spec.Payload),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert work item: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a work item by identifier. Returns ErrUnknownItem when the
// id has never been seen.
func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", lifecycle.ErrUnknownItem, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func getByIDTx(ctx context.Context, tx *sql.Tx, id string) (*Item, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", lifecycle.ErrUnknownItem, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// priorityOrder ranks critical first, then FIFO within a band. Advisory
// ordering only; items at the same rank and time are interchangeable.
const priorityOrder = `CASE priority
        WHEN 'critical' THEN 0
        WHEN 'high' THEN 1
        WHEN 'medium' THEN 2
        ELSE 3
    END, created_at, id`

// List returns work items filtered by status set (or all items when no status
// is provided), ordered by priority then creation time.
func (s *Store) List(ctx context.Context, statuses ...lifecycle.Status) ([]*Item, error) {
	baseQuery := `SELECT ` + itemColumns + ` FROM work_items`
	orderClause := ` ORDER BY ` + priorityOrder

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = string(status)
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListByStage returns items currently occupying a stage. Stage is derived
// from status, so this is a status filter under the covers.
func (s *Store) ListByStage(ctx context.Context, stage lifecycle.Stage) ([]*Item, error) {
	status, ok := lifecycle.StatusForStage(string(stage))
	if !ok {
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
	return s.List(ctx, status)
}

// NextEligible returns items the sweep should consider: pending items plus
// in-progress items whose heartbeat is absent or older than staleBefore.
func (s *Store) NextEligible(ctx context.Context, staleBefore time.Time) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM work_items
         WHERE status = ?
            OR (status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?))
         ORDER BY `+priorityOrder,
		string(lifecycle.StatusPending),
		string(lifecycle.StatusInProgress),
		staleBefore.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("list eligible items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM work_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("item stats: %w", err)
	}
	defer rows.Close()

	stats := make(Stats)
	for rows.Next() {
		var status lifecycle.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const itemColumns = "id, kind, priority, status, requires_approval, approved, attempt_count, max_attempts, payload, last_error, last_heartbeat, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               string
		kind             string
		priority         string
		statusStr        string
		requiresApproval int
		approved         sql.NullInt64
		attemptCount     int
		maxAttempts      int
		payload          sql.NullString
		lastError        sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       string
		updatedRaw       string
	)

	if err := scanner.Scan(
		&id,
		&kind,
		&priority,
		&statusStr,
		&requiresApproval,
		&approved,
		&attemptCount,
		&maxAttempts,
		&payload,
		&lastError,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:               id,
		Kind:             lifecycle.Kind(kind),
		Priority:         lifecycle.Priority(priority),
		Status:           lifecycle.Status(statusStr),
		RequiresApproval: requiresApproval != 0,
		AttemptCount:     attemptCount,
		MaxAttempts:      maxAttempts,
		Payload:          payload.String,
		LastError:        lastError.String,
	}
	if approved.Valid {
		decided := approved.Int64 != 0
		item.Approved = &decided
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
