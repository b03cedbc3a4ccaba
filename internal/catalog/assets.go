// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/hearthlib/hearth/internal/models"
)

// InsertAsset inserts the asset only if its content hash is new. A duplicate
// hash is not an error; the caller gets DuplicateHash and skips silently.
func (s *Store) InsertAsset(ctx context.Context, asset *models.MediaAsset) (InsertResult, error) {
	manifest := ""
	if len(asset.Manifest) > 0 {
		raw, err := json.Marshal(asset.Manifest)
		if err != nil {
			return 0, fmt.Errorf("failed to encode manifest: %w", err)
		}
		manifest = string(raw)
	}

	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now().UTC()
	}
	if asset.Status == "" {
		asset.Status = models.AssetStatusNormal
	}

	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO media_assets (id, edition_id, content_hash, file_path_root, status, manifest, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO NOTHING`,
		asset.ID.String(), asset.EditionID.String(), asset.ContentHash,
		asset.FilePathRoot, string(asset.Status), manifest, asset.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert asset: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return DuplicateHash, nil
	}
	return Inserted, nil
}

// FindAssetByHash looks up an asset by its lowercase hex content hash.
// Returns ErrNotFound when no asset carries the hash.
func (s *Store) FindAssetByHash(ctx context.Context, hexHash string) (*models.MediaAsset, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, edition_id, content_hash, file_path_root, status, manifest, created_at
		FROM media_assets WHERE content_hash = ?`, hexHash)
	return scanAsset(row)
}

// FindAssetsByPath returns all assets whose file_path_root equals path. Used
// by the orphan reconciler when a watched file disappears.
func (s *Store) FindAssetsByPath(ctx context.Context, path string) ([]*models.MediaAsset, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, edition_id, content_hash, file_path_root, status, manifest, created_at
		FROM media_assets WHERE file_path_root = ?`, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer closeQuietly(rows)

	var assets []*models.MediaAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// UpdateAssetPath records the organised destination after a rename. Identity
// stays with the content hash; the path is bookkeeping.
func (s *Store) UpdateAssetPath(ctx context.Context, id string, newPath string) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE media_assets SET file_path_root = ? WHERE id = ?`, newPath, id)
	if err != nil {
		return fmt.Errorf("failed to update asset path: %w", err)
	}
	return nil
}

// MarkAssetStatus transitions an asset's status (Normal, Conflicted,
// Orphaned). The row itself is always preserved.
func (s *Store) MarkAssetStatus(ctx context.Context, id string, status models.AssetStatus) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE media_assets SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to mark asset status: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(row scanner) (*models.MediaAsset, error) {
	var (
		a            models.MediaAsset
		idStr, edStr string
		status       string
		manifest     string
	)
	err := row.Scan(&idStr, &edStr, &a.ContentHash, &a.FilePathRoot, &status, &manifest, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if a.ID, err = parseUUID(idStr); err != nil {
		return nil, err
	}
	if a.EditionID, err = parseUUID(edStr); err != nil {
		return nil, err
	}
	a.Status = models.AssetStatus(status)
	if manifest != "" {
		if err := json.Unmarshal([]byte(manifest), &a.Manifest); err != nil {
			return nil, fmt.Errorf("corrupt manifest for asset %s: %w", idStr, err)
		}
	}
	return &a, nil
}
