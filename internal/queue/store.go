package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Insert persists item in the given state. It returns an error wrapping
// ErrConflict when a row with the same fingerprint already exists; the
// uniqueness check is the primary key constraint, so it holds across
// processes sharing the database.
func (s *Store) Insert(ctx context.Context, item WorkItem, state State) error {
	if err := validateState(state); err != nil {
		return err
	}
	_, err := s.execWithRetry(ctx,
		"INSERT INTO work_items ("+itemColumns+", state) VALUES (?, ?, ?, ?, ?)",
		item.Fingerprint, item.CreatedAt, item.WorkType, item.Payload, string(state),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert work item %d: %w", item.Fingerprint, ErrConflict)
		}
		return fmt.Errorf("insert work item %d: %w", item.Fingerprint, err)
	}
	return nil
}

// Get returns the work item with the given fingerprint, or nil if none exists.
func (s *Store) Get(ctx context.Context, fingerprint int64) (*WorkItem, error) {
	row := s.queryRow(ctx, "SELECT "+itemColumns+" FROM work_items WHERE fingerprint = ?", fingerprint)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get work item %d: %w", fingerprint, err)
	}
	return &item, nil
}

// StateOf returns the state of the row with the given fingerprint. The bool is
// false when no such row exists.
func (s *Store) StateOf(ctx context.Context, fingerprint int64) (State, bool, error) {
	var state string
	err := s.queryRow(ctx, "SELECT state FROM work_items WHERE fingerprint = ?", fingerprint).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("state of work item %d: %w", fingerprint, err)
	}
	return State(state), true, nil
}

// ListByState returns rows in state ordered oldest first. A limit of zero or
// less returns every matching row.
func (s *Store) ListByState(ctx context.Context, state State, limit int) ([]WorkItem, error) {
	if err := validateState(state); err != nil {
		return nil, err
	}
	query := "SELECT " + itemColumns + " FROM work_items WHERE state = ? ORDER BY created_at ASC"
	args := []any{string(state)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s work items: %w", state, err)
	}
	defer rows.Close()

	var items []WorkItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateState overwrites the state of one row without checking its prior state.
func (s *Store) UpdateState(ctx context.Context, fingerprint int64, state State) error {
	if err := validateState(state); err != nil {
		return err
	}
	if _, err := s.execWithRetry(ctx, "UPDATE work_items SET state = ? WHERE fingerprint = ?", string(state), fingerprint); err != nil {
		return fmt.Errorf("update work item %d to %s: %w", fingerprint, state, err)
	}
	return nil
}

// UpdateAllToState overwrites the state of every row and returns how many were touched.
func (s *Store) UpdateAllToState(ctx context.Context, state State) (int64, error) {
	if err := validateState(state); err != nil {
		return 0, err
	}
	res, err := s.execWithRetry(ctx, "UPDATE work_items SET state = ?", string(state))
	if err != nil {
		return 0, fmt.Errorf("update all work items to %s: %w", state, err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// Delete removes the row with the given fingerprint. Deleting a missing row is not an error.
func (s *Store) Delete(ctx context.Context, fingerprint int64) error {
	if _, err := s.execWithRetry(ctx, "DELETE FROM work_items WHERE fingerprint = ?", fingerprint); err != nil {
		return fmt.Errorf("delete work item %d: %w", fingerprint, err)
	}
	return nil
}

// DeleteAll removes every row and returns how many were deleted.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM work_items")
	if err != nil {
		return 0, fmt.Errorf("delete all work items: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
