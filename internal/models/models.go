// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package models defines the catalogue entities shared across the engine:
// hubs, works, editions, assets, metadata claims and canonical values.
//
// Ownership is Hub → Work → Edition → MediaAsset, implemented as child→parent
// id back-references. Loaders build parents first and attach children by id
// lookup; no reference cycles are ever constructed.
package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaType classifies a Work's format family.
type MediaType int

const (
	MediaTypeUnknown MediaType = iota
	MediaTypeMovie
	MediaTypeEpub
	MediaTypeAudiobook
	MediaTypeComic
	MediaTypeTvShow
	MediaTypePodcast
	MediaTypeMusic
)

var mediaTypeNames = map[MediaType]string{
	MediaTypeUnknown:   "Unknown",
	MediaTypeMovie:     "Movie",
	MediaTypeEpub:      "Epub",
	MediaTypeAudiobook: "Audiobook",
	MediaTypeComic:     "Comic",
	MediaTypeTvShow:    "TvShow",
	MediaTypePodcast:   "Podcast",
	MediaTypeMusic:     "Music",
}

// String returns the canonical name of the media type.
func (m MediaType) String() string {
	if s, ok := mediaTypeNames[m]; ok {
		return s
	}
	return "Unknown"
}

// ParseMediaType converts a stored name back to a MediaType.
// Unrecognised names map to MediaTypeUnknown.
func ParseMediaType(s string) MediaType {
	for mt, name := range mediaTypeNames {
		if name == s {
			return mt
		}
	}
	return MediaTypeUnknown
}

// AssetStatus tracks the lifecycle of a MediaAsset row.
type AssetStatus string

const (
	AssetStatusNormal     AssetStatus = "Normal"
	AssetStatusConflicted AssetStatus = "Conflicted"
	AssetStatusOrphaned   AssetStatus = "Orphaned"
)

// EntityType discriminates the polymorphic target of a metadata claim.
type EntityType string

const (
	EntityTypeWork    EntityType = "work"
	EntityTypeEdition EntityType = "edition"
)

// Hub is the narrative identity grouping every format of one intellectual
// property. display_name doubles as a case-insensitive lookup key during
// ingestion; collisions are tolerated and reconciled by the arbiter later.
type Hub struct {
	ID          uuid.UUID  `json:"id"`
	UniverseID  *uuid.UUID `json:"universe_id,omitempty"`
	DisplayName string     `json:"display_name"`
	CreatedAt   time.Time  `json:"created_at"`

	// Works is populated by the two-query catalogue load; it is never
	// serialised back into the store.
	Works []*Work `json:"works,omitempty"`
}

// Work is one title (book, film, episode) within a Hub. HubID is nullable in
// storage only so that deleting a Hub can orphan rather than destroy its Works.
type Work struct {
	ID            uuid.UUID  `json:"id"`
	HubID         *uuid.UUID `json:"hub_id,omitempty"`
	MediaType     MediaType  `json:"media_type"`
	SequenceIndex *float64   `json:"sequence_index,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`

	CanonicalValues []CanonicalValue `json:"canonical_values,omitempty"`
}

// Edition is a specific physical or encoded manifestation of a Work.
type Edition struct {
	ID          uuid.UUID `json:"id"`
	WorkID      uuid.UUID `json:"work_id"`
	FormatLabel string    `json:"format_label,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MediaAsset is a file on disk (or a manifest of files treated as one).
// ContentHash is the identity anchor: renames and moves reconcile through it.
// Binaries never live in the catalogue.
type MediaAsset struct {
	ID           uuid.UUID   `json:"id"`
	EditionID    uuid.UUID   `json:"edition_id"`
	ContentHash  string      `json:"content_hash"` // lowercase hex, 256-bit digest
	FilePathRoot string      `json:"file_path_root"`
	Status       AssetStatus `json:"status"`
	Manifest     []string    `json:"manifest,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// MetadataClaim is one append-only key/value assertion from one provider.
// Claims are never deleted; historical re-scoring must stay reproducible.
type MetadataClaim struct {
	ID           uuid.UUID  `json:"id"`
	EntityID     uuid.UUID  `json:"entity_id"`
	EntityType   EntityType `json:"entity_type"`
	ProviderID   string     `json:"provider_id"`
	Key          string     `json:"claim_key"`
	Value        string     `json:"claim_value"`
	Confidence   float64    `json:"confidence"` // [0,1]
	ClaimedAt    time.Time  `json:"claimed_at"`
	IsUserLocked bool       `json:"is_user_locked"`
}

// CanonicalValue is the scored winner per (entity, key). Unlike claims it is
// mutable: each re-scoring replaces the row with the same composite key.
type CanonicalValue struct {
	EntityID     uuid.UUID `json:"entity_id"`
	Key          string    `json:"key"`
	Value        string    `json:"value"`
	LastScoredAt time.Time `json:"last_scored_at"`
}

// ProviderRegistration describes one metadata provider and its voting weights.
type ProviderRegistration struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Enabled       bool               `json:"enabled"`
	DefaultWeight float64            `json:"default_weight"`
	FieldWeights  map[string]float64 `json:"field_weights,omitempty"`
}

// TransactionLogEntry is one append-only audit row. The log is pruned to a
// configured maximum by deleting the oldest overflow.
type TransactionLogEntry struct {
	ID         int64     `json:"id"`
	EventType  string    `json:"event_type"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
