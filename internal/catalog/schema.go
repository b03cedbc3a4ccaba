// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package catalog

// schema creates the catalogue tables. All statements are idempotent so the
// same script runs on every startup; column-level evolution happens in
// migrations.go guarded by column-presence inspection.
const schema = `
-- Hubs: the narrative identity. display_name is a case-insensitive lookup
-- key but deliberately NOT unique; collisions are merged by the arbiter.
CREATE TABLE IF NOT EXISTS hubs (
    id TEXT PRIMARY KEY,
    universe_id TEXT,
    display_name TEXT NOT NULL COLLATE NOCASE,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_hubs_display_name ON hubs(display_name);

-- Works: one title within a hub. hub_id is nullable so deleting a hub
-- orphans its works instead of destroying them.
CREATE TABLE IF NOT EXISTS works (
    id TEXT PRIMARY KEY,
    hub_id TEXT REFERENCES hubs(id) ON DELETE SET NULL,
    media_type TEXT NOT NULL DEFAULT 'Unknown',
    sequence_index REAL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_works_hub ON works(hub_id);

-- Editions: a physical manifestation of a work.
CREATE TABLE IF NOT EXISTS editions (
    id TEXT PRIMARY KEY,
    work_id TEXT NOT NULL REFERENCES works(id),
    format_label TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_editions_work ON editions(work_id);

-- Media assets: files on disk, identified by content hash. The UNIQUE
-- constraint on content_hash is the dedupe anchor.
CREATE TABLE IF NOT EXISTS media_assets (
    id TEXT PRIMARY KEY,
    edition_id TEXT NOT NULL REFERENCES editions(id),
    content_hash TEXT NOT NULL UNIQUE,
    file_path_root TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'Normal',
    manifest TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_assets_path ON media_assets(file_path_root);

-- Metadata claims: append-only. The store exposes no UPDATE or DELETE for
-- this table; re-scoring reads the full history.
CREATE TABLE IF NOT EXISTS metadata_claims (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    entity_type TEXT NOT NULL DEFAULT 'edition',
    provider_id TEXT NOT NULL,
    claim_key TEXT NOT NULL,
    claim_value TEXT NOT NULL,
    confidence REAL NOT NULL CHECK(confidence >= 0 AND confidence <= 1),
    claimed_at DATETIME NOT NULL,
    is_user_locked INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_claims_entity ON metadata_claims(entity_id);

-- Canonical values: the scored winner per (entity, key). Mutable by upsert.
CREATE TABLE IF NOT EXISTS canonical_values (
    entity_id TEXT NOT NULL,
    claim_key TEXT NOT NULL,
    claim_value TEXT NOT NULL,
    last_scored_at DATETIME NOT NULL,
    PRIMARY KEY (entity_id, claim_key)
);

-- Transaction journal: append-only audit rows, pruned to a configured cap.
CREATE TABLE IF NOT EXISTS transaction_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_type TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
