// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package models

// Lifecycle event names published on the engine bus and written to the
// transaction journal. Subscribers match on these exact strings.
const (
	EventMediaAdded        = "MEDIA_ADDED"
	EventMetadataHarvested = "METADATA_HARVESTED"
	EventDuplicateSkipped  = "DUPLICATE_SKIPPED"
	EventAssetCorrupt      = "ASSET_CORRUPT"
	EventAssetOrphaned     = "ASSET_ORPHANED"
	EventCandidateFailed   = "CANDIDATE_FAILED"
	EventWorkAutoLinked    = "WORK_AUTO_LINKED"
	EventWorkNeedsReview   = "WORK_NEEDS_REVIEW"
	EventWorkLinkRejected  = "WORK_LINK_REJECTED"
	EventConfigChanged     = "CONFIG_CHANGED"
)
