package queue

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Counts returns one entry per state that currently has rows, in lifecycle order.
func (s *Store) Counts(ctx context.Context) ([]StateCount, error) {
	rows, err := s.query(ctx, "SELECT state, COUNT(1) FROM work_items GROUP BY state")
	if err != nil {
		return nil, fmt.Errorf("work item counts: %w", err)
	}
	defer rows.Close()

	var counts []StateCount
	for rows.Next() {
		var (
			state string
			count int64
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan work item count: %w", err)
		}
		counts = append(counts, StateCount{State: State(state), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(counts, func(i, j int) bool {
		return stateRank(counts[i].State) < stateRank(counts[j].State)
	})
	return counts, nil
}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		Driver:   s.dialect.name,
		Location: s.location,
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.Readable = true

	version, err := s.readSchemaVersion(connCtx)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.SchemaVersion = version

	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM work_items").Scan(&health.TotalItems); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count work items: %w", err)
	}

	if s.dialect.name != sqliteDialect.name {
		health.IntegrityCheck = true
		return health, nil
	}
	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return health, nil
}
