// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package chain materialises the Hub→Work→Edition chain for a freshly hashed
// asset. Hubs are reused by display name; Works and Editions are always
// created new — deduplication under a hub is deliberately deferred to the
// arbiter workflow.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hearthlib/hearth/internal/catalog"
	"github.com/hearthlib/hearth/internal/models"
)

// UnknownTitle stands in when no title claim survived extraction.
const UnknownTitle = "Unknown"

// Store is the slice of the catalogue the factory writes through.
type Store interface {
	FindHubByDisplayName(ctx context.Context, name string) (*models.Hub, error)
	CreateHub(ctx context.Context, hub *models.Hub) error
	CreateWork(ctx context.Context, work *models.Work) error
	CreateEdition(ctx context.Context, edition *models.Edition) error
}

// Factory builds entity chains idempotently with respect to hub reuse.
type Factory struct {
	store Store
}

// NewFactory wires a factory over the given store.
func NewFactory(store Store) *Factory {
	return &Factory{store: store}
}

// Result reports the chain the factory ensured.
type Result struct {
	HubID     uuid.UUID
	WorkID    uuid.UUID
	EditionID uuid.UUID
	// HubReused is true when an existing hub matched by display name.
	HubReused bool
}

// Ensure creates (or reuses) the chain for one asset. The metadata map
// supplies "title" (hub lookup key), "series_index" (work sequence) and
// "format" (edition label). editionID pre-assigns the edition's id so claims
// recorded before the chain exists keep pointing at the right entity.
func (f *Factory) Ensure(ctx context.Context, mediaType models.MediaType, metadata map[string]string, editionID uuid.UUID) (*Result, error) {
	title := strings.TrimSpace(metadata["title"])
	if title == "" {
		title = UnknownTitle
	}

	result := &Result{}

	hub, err := f.store.FindHubByDisplayName(ctx, title)
	switch {
	case err == nil:
		result.HubID = hub.ID
		result.HubReused = true
	case errors.Is(err, catalog.ErrNotFound):
		hub = &models.Hub{ID: uuid.New(), DisplayName: title}
		if err := f.store.CreateHub(ctx, hub); err != nil {
			return nil, fmt.Errorf("chain: failed to create hub: %w", err)
		}
		result.HubID = hub.ID
	default:
		return nil, fmt.Errorf("chain: hub lookup failed: %w", err)
	}

	work := &models.Work{
		ID:        uuid.New(),
		HubID:     &result.HubID,
		MediaType: mediaType,
	}
	if raw, ok := metadata["series_index"]; ok {
		if idx, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			work.SequenceIndex = &idx
		}
	}
	if err := f.store.CreateWork(ctx, work); err != nil {
		return nil, fmt.Errorf("chain: failed to create work: %w", err)
	}
	result.WorkID = work.ID

	edition := &models.Edition{
		ID:          editionID,
		WorkID:      work.ID,
		FormatLabel: strings.TrimSpace(metadata["format"]),
	}
	if edition.ID == uuid.Nil {
		edition.ID = uuid.New()
	}
	if err := f.store.CreateEdition(ctx, edition); err != nil {
		return nil, fmt.Errorf("chain: failed to create edition: %w", err)
	}
	result.EditionID = edition.ID

	return result, nil
}
