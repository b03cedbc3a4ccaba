// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package organize

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hearthlib/hearth/internal/catalog"
	"github.com/hearthlib/hearth/internal/models"
)

// InhaleStore is the slice of the catalogue the great inhale writes
// through.
type InhaleStore interface {
	FindAssetByHash(ctx context.Context, hexHash string) (*models.MediaAsset, error)
	FindHubByDisplayName(ctx context.Context, name string) (*models.Hub, error)
	CreateHub(ctx context.Context, hub *models.Hub) error
	CreateWork(ctx context.Context, work *models.Work) error
	CreateEdition(ctx context.Context, edition *models.Edition) error
	InsertAsset(ctx context.Context, asset *models.MediaAsset) (catalog.InsertResult, error)
	UpsertCanonical(ctx context.Context, entityID uuid.UUID, key, value string, ts time.Time) error
	LogEvent(ctx context.Context, eventType, entityType, entityID string) error
}

// InhaleStats summarises one rebuild pass.
type InhaleStats struct {
	SidecarsSeen   int
	AssetsRestored int
	Duplicates     int
	Skipped        int
}

// Inhaler rebuilds the catalogue from on-disk sidecars: the recovery
// path when the database file is lost but the organised library is not.
type Inhaler struct {
	store InhaleStore
	log   zerolog.Logger
}

// NewInhaler creates the rebuild walker.
func NewInhaler(store InhaleStore, logger zerolog.Logger) *Inhaler {
	return &Inhaler{store: store, log: logger}
}

// Rebuild walks dataRoot, reads every sidecar and restores the full
// ownership chain plus canonical values. Sidecars whose media file is
// missing, or which fail to parse, are skipped and counted; one bad
// sidecar never aborts the pass.
func (i *Inhaler) Rebuild(ctx context.Context, dataRoot string) (InhaleStats, error) {
	var stats InhaleStats

	err := filepath.WalkDir(dataRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking %s: %w", path, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == QuarantineDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, SidecarSuffix) {
			return nil
		}

		stats.SidecarsSeen++
		if err := i.restore(ctx, path, &stats); err != nil {
			stats.Skipped++
			i.log.Warn().Err(err).Str("sidecar", path).Msg("Skipping unrestorable sidecar")
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("rebuilding catalogue: %w", err)
	}

	i.log.Info().
		Int("sidecars", stats.SidecarsSeen).
		Int("restored", stats.AssetsRestored).
		Int("duplicates", stats.Duplicates).
		Int("skipped", stats.Skipped).
		Msg("Catalogue rebuild complete")
	return stats, nil
}

func (i *Inhaler) restore(ctx context.Context, sidecarPath string, stats *InhaleStats) error {
	sc, err := ReadSidecar(sidecarPath)
	if err != nil {
		return err
	}

	mediaPath := strings.TrimSuffix(sidecarPath, SidecarSuffix)
	if _, err := os.Stat(mediaPath); err != nil {
		return fmt.Errorf("media file missing for sidecar: %w", err)
	}

	// Content hash is the identity anchor; a hash already in the
	// catalogue means this asset (and its chain) survived.
	switch _, err := i.store.FindAssetByHash(ctx, sc.ContentHash); {
	case err == nil:
		stats.Duplicates++
		return nil
	case !errors.Is(err, catalog.ErrNotFound):
		return fmt.Errorf("checking content hash: %w", err)
	}

	hub, err := i.ensureHub(ctx, sc)
	if err != nil {
		return err
	}

	workID, err := uuid.Parse(sc.WorkID)
	if err != nil {
		return fmt.Errorf("invalid work id: %w", err)
	}
	work := &models.Work{
		ID:            workID,
		HubID:         &hub.ID,
		MediaType:     models.ParseMediaType(sc.MediaType),
		SequenceIndex: sc.SequenceIndex,
	}
	if err := i.store.CreateWork(ctx, work); err != nil {
		return fmt.Errorf("restoring work: %w", err)
	}

	editionID, err := uuid.Parse(sc.EditionID)
	if err != nil {
		return fmt.Errorf("invalid edition id: %w", err)
	}
	edition := &models.Edition{ID: editionID, WorkID: workID, FormatLabel: sc.FormatLabel}
	if err := i.store.CreateEdition(ctx, edition); err != nil {
		return fmt.Errorf("restoring edition: %w", err)
	}

	assetID, err := uuid.Parse(sc.AssetID)
	if err != nil {
		return fmt.Errorf("invalid asset id: %w", err)
	}
	res, err := i.store.InsertAsset(ctx, &models.MediaAsset{
		ID:           assetID,
		EditionID:    editionID,
		ContentHash:  sc.ContentHash,
		FilePathRoot: mediaPath,
	})
	if err != nil {
		return fmt.Errorf("restoring asset: %w", err)
	}
	if res == catalog.DuplicateHash {
		stats.Duplicates++
		return nil
	}

	for _, cv := range sc.Canonical {
		if err := i.store.UpsertCanonical(ctx, workID, cv.Key, cv.Value, sc.WrittenAt); err != nil {
			return fmt.Errorf("restoring canonical %q: %w", cv.Key, err)
		}
	}

	stats.AssetsRestored++
	return i.store.LogEvent(ctx, "GREAT_INHALE_RESTORED", "asset", assetID.String())
}

// ensureHub reuses an existing hub with the sidecar's display name
// (oldest wins, matching ingestion) or recreates it under its original
// identifier.
func (i *Inhaler) ensureHub(ctx context.Context, sc *Sidecar) (*models.Hub, error) {
	hub, err := i.store.FindHubByDisplayName(ctx, sc.HubName)
	switch {
	case err == nil:
		return hub, nil
	case !errors.Is(err, catalog.ErrNotFound):
		return nil, fmt.Errorf("looking up hub: %w", err)
	}

	hubID, err := uuid.Parse(sc.HubID)
	if err != nil {
		return nil, fmt.Errorf("invalid hub id: %w", err)
	}
	hub = &models.Hub{ID: hubID, DisplayName: sc.HubName}
	if err := i.store.CreateHub(ctx, hub); err != nil {
		return nil, fmt.Errorf("restoring hub: %w", err)
	}
	return hub, nil
}
