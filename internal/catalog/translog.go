// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/hearthlib/hearth/internal/logging"
)

// LogEvent appends one audit row to the transaction journal.
func (s *Store) LogEvent(ctx context.Context, eventType, entityType, entityID string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO transaction_log (event_type, entity_type, entity_id, occurred_at)
		VALUES (?, ?, ?, ?)`,
		eventType, entityType, entityID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to log event: %w", err)
	}
	return nil
}

// PruneLog deletes the oldest overflow beyond maxEntries. The DELETE targets
// ids below the cutoff found with a subquery, so no DELETE ... LIMIT support
// is required from the engine.
func (s *Store) PruneLog(ctx context.Context, maxEntries int) error {
	if maxEntries <= 0 {
		return nil
	}
	res, err := s.conn.ExecContext(ctx, `
		DELETE FROM transaction_log
		WHERE id < (
			SELECT MIN(id) FROM (
				SELECT id FROM transaction_log ORDER BY id DESC LIMIT ?
			)
		)`, maxEntries)
	if err != nil {
		return fmt.Errorf("failed to prune transaction log: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logging.Debug().Int64("pruned", n).Msg("transaction log pruned")
	}
	return nil
}

// CountLogEntries returns the journal size. Used by tests and maintenance.
func (s *Store) CountLogEntries(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM transaction_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// LastLogEvents returns the most recent n journal rows, newest first. The
// arbiter's decisions surface here for review tooling.
func (s *Store) LastLogEvents(ctx context.Context, n int) ([]LogRow, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT event_type, entity_type, entity_id, occurred_at
		FROM transaction_log ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer closeQuietly(rows)

	var out []LogRow
	for rows.Next() {
		var r LogRow
		if err := rows.Scan(&r.EventType, &r.EntityType, &r.EntityID, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LogRow is one journal row as read back for inspection.
type LogRow struct {
	EventType  string    `json:"event_type"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
