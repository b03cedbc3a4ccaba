// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlib/hearth/internal/models"
)

// AppendClaim records one metadata assertion. Claims are append-only: the
// store exposes no update or delete for them, so historical re-scoring stays
// reproducible.
func (s *Store) AppendClaim(ctx context.Context, claim *models.MetadataClaim) error {
	if claim.ID == uuid.Nil {
		claim.ID = uuid.New()
	}
	if claim.ClaimedAt.IsZero() {
		claim.ClaimedAt = time.Now().UTC()
	}
	if claim.EntityType == "" {
		claim.EntityType = models.EntityTypeEdition
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO metadata_claims
			(id, entity_id, entity_type, provider_id, claim_key, claim_value, confidence, claimed_at, is_user_locked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		claim.ID.String(), claim.EntityID.String(), string(claim.EntityType),
		claim.ProviderID, claim.Key, claim.Value, claim.Confidence,
		claim.ClaimedAt, boolToInt(claim.IsUserLocked))
	if err != nil {
		return fmt.Errorf("failed to append claim: %w", err)
	}
	return nil
}

// ListClaims returns every claim ever recorded against the entity, in
// insertion order. No filtering: the scoring engine sees the full history.
func (s *Store) ListClaims(ctx context.Context, entityID uuid.UUID) ([]models.MetadataClaim, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, entity_id, entity_type, provider_id, claim_key, claim_value, confidence, claimed_at, is_user_locked
		FROM metadata_claims
		WHERE entity_id = ?
		ORDER BY claimed_at, id`, entityID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer closeQuietly(rows)

	var claims []models.MetadataClaim
	for rows.Next() {
		var (
			c            models.MetadataClaim
			idStr, enStr string
			entityType   string
			locked       int
		)
		if err := rows.Scan(&idStr, &enStr, &entityType, &c.ProviderID, &c.Key,
			&c.Value, &c.Confidence, &c.ClaimedAt, &locked); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if c.ID, err = parseUUID(idStr); err != nil {
			return nil, err
		}
		if c.EntityID, err = parseUUID(enStr); err != nil {
			return nil, err
		}
		c.EntityType = models.EntityType(entityType)
		c.IsUserLocked = locked != 0
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// CountClaims returns the total number of claim rows. Used by tests asserting
// the append-only invariant and by /system/status.
func (s *Store) CountClaims(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM metadata_claims`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt id %q in catalogue: %w", s, err)
	}
	return id, nil
}
