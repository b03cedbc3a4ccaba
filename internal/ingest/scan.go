// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hearthlib/hearth/internal/catalog"
	"github.com/hearthlib/hearth/internal/hashing"
	"github.com/hearthlib/hearth/internal/organize"
	"github.com/hearthlib/hearth/internal/watcher"
)

// ScanStats summarises one differential scan of the watch root.
type ScanStats struct {
	FilesSeen int      `json:"files_seen"`
	Known     int      `json:"known"`
	NewPaths  []string `json:"new_paths"`
	Errors    int      `json:"errors"`
}

// Scan walks root and finds files whose content hash is absent from
// the catalogue: the differential pass that picks up drops which
// happened while the process was down. With dryRun the new paths are
// only reported; otherwise each is handed to enqueue as a synthetic
// Created candidate.
func (o *Orchestrator) Scan(ctx context.Context, root string, dryRun bool, enqueue func(watcher.Candidate)) (ScanStats, error) {
	var stats ScanStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking %s: %w", path, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || strings.HasSuffix(path, organize.SidecarSuffix) {
			return nil
		}

		stats.FilesSeen++

		digest, err := hashing.HashFile(ctx, path)
		if err != nil {
			stats.Errors++
			o.log.Warn().Err(err).Str("path", path).Msg("Differential scan could not hash file")
			return nil
		}

		switch _, err := o.store.FindAssetByHash(ctx, digest.Hex); {
		case err == nil:
			stats.Known++
			return nil
		case !errors.Is(err, catalog.ErrNotFound):
			return fmt.Errorf("hash lookup during scan: %w", err)
		}

		stats.NewPaths = append(stats.NewPaths, path)
		if !dryRun {
			now := time.Now().UTC()
			enqueue(watcher.Candidate{
				Path:       path,
				Event:      watcher.FileEvent{Path: path, Type: watcher.EventCreated, OccurredAt: now},
				DetectedAt: now,
				ReadyAt:    now,
			})
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("differential scan: %w", err)
	}

	o.log.Info().
		Int("seen", stats.FilesSeen).
		Int("known", stats.Known).
		Int("new", len(stats.NewPaths)).
		Bool("dry_run", dryRun).
		Msg("Differential scan complete")
	return stats, nil
}

// ReplayJournal re-enqueues candidates the recovery journal still holds
// from the previous run. Entries whose file no longer exists are
// cleared instead of replayed.
func (o *Orchestrator) ReplayJournal(ctx context.Context, enqueue func(watcher.Candidate)) (int, error) {
	if o.journal == nil {
		return 0, nil
	}

	pending, err := o.journal.Pending()
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, entry := range pending {
		if ctx.Err() != nil {
			return replayed, ctx.Err()
		}
		if _, err := os.Stat(entry.Path); err != nil {
			o.resolvePending(entry.Path)
			continue
		}

		now := time.Now().UTC()
		enqueue(watcher.Candidate{
			Path:       entry.Path,
			Event:      watcher.FileEvent{Path: entry.Path, Type: watcher.EventModified, OccurredAt: now},
			DetectedAt: entry.RecordedAt,
			ReadyAt:    now,
		})
		replayed++
	}

	if replayed > 0 {
		o.log.Info().Int("replayed", replayed).Msg("Recovery journal replayed")
	}
	return replayed, nil
}
