// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlib/hearth/internal/models"
)

// UpsertCanonical replaces the canonical value for (entity, key). Unlike
// claims, canonical values are mutable: every re-scoring overwrites them.
func (s *Store) UpsertCanonical(ctx context.Context, entityID uuid.UUID, key, value string, ts time.Time) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO canonical_values (entity_id, claim_key, claim_value, last_scored_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id, claim_key) DO UPDATE SET
			claim_value = excluded.claim_value,
			last_scored_at = excluded.last_scored_at`,
		entityID.String(), key, value, ts)
	if err != nil {
		return fmt.Errorf("failed to upsert canonical value: %w", err)
	}
	return nil
}

// ListCanonical returns the canonical values for one entity.
func (s *Store) ListCanonical(ctx context.Context, entityID uuid.UUID) ([]models.CanonicalValue, error) {
	return s.listCanonicalWhere(ctx, "WHERE entity_id = ?", entityID.String())
}

// ListCanonicalForEntities returns canonical values for a batch of entities in
// one IN-list query. This is the second half of the two-query hub load.
func (s *Store) ListCanonicalForEntities(ctx context.Context, entityIDs []uuid.UUID) (map[uuid.UUID][]models.CanonicalValue, error) {
	result := make(map[uuid.UUID][]models.CanonicalValue, len(entityIDs))
	if len(entityIDs) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(entityIDs)), ",")
	args := make([]any, len(entityIDs))
	for i, id := range entityIDs {
		args[i] = id.String()
	}

	values, err := s.listCanonicalWhere(ctx,
		fmt.Sprintf("WHERE entity_id IN (%s)", placeholders), args...)
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		result[v.EntityID] = append(result[v.EntityID], v)
	}
	return result, nil
}

func (s *Store) listCanonicalWhere(ctx context.Context, where string, args ...any) ([]models.CanonicalValue, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT entity_id, claim_key, claim_value, last_scored_at
		FROM canonical_values `+where+` ORDER BY claim_key`, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer closeQuietly(rows)

	var values []models.CanonicalValue
	for rows.Next() {
		var (
			v     models.CanonicalValue
			idStr string
		)
		if err := rows.Scan(&idStr, &v.Key, &v.Value, &v.LastScoredAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if v.EntityID, err = parseUUID(idStr); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
