// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package catalog

import (
	"context"
	"fmt"

	"github.com/hearthlib/hearth/internal/logging"
)

// columnMigration adds a column if it is not already present. Guarding on
// column presence keeps startup idempotent across versions without a
// migration-version table.
type columnMigration struct {
	table  string
	column string
	ddl    string
}

// columnMigrations lists schema evolution since the v1 schema. Order matters.
var columnMigrations = []columnMigration{
	// v2: claim target discrimination (work vs edition)
	{"metadata_claims", "entity_type", "ALTER TABLE metadata_claims ADD COLUMN entity_type TEXT NOT NULL DEFAULT 'edition'"},
	// v2: multi-file manifests stored as a JSON array
	{"media_assets", "manifest", "ALTER TABLE media_assets ADD COLUMN manifest TEXT NOT NULL DEFAULT ''"},
	// v3: series membership on works
	{"works", "sequence_index", "ALTER TABLE works ADD COLUMN sequence_index REAL"},
}

// runMigrations applies any column migrations that have not landed yet.
func (s *Store) runMigrations(ctx context.Context) error {
	for _, m := range columnMigrations {
		present, err := s.columnExists(ctx, m.table, m.column)
		if err != nil {
			return fmt.Errorf("failed to inspect %s.%s: %w", m.table, m.column, err)
		}
		if present {
			continue
		}
		if _, err := s.conn.ExecContext(ctx, m.ddl); err != nil {
			return fmt.Errorf("migration %s.%s failed: %w", m.table, m.column, err)
		}
		logging.Info().Str("table", m.table).Str("column", m.column).Msg("applied catalogue migration")
	}
	return nil
}

// columnExists inspects table_info for the named column.
func (s *Store) columnExists(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer closeQuietly(rows)

	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dfltValue  any
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &primaryKey); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
