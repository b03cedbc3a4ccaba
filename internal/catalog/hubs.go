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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlib/hearth/internal/models"
)

// CreateHub persists a new hub.
func (s *Store) CreateHub(ctx context.Context, hub *models.Hub) error {
	if hub.ID == uuid.Nil {
		hub.ID = uuid.New()
	}
	if hub.CreatedAt.IsZero() {
		hub.CreatedAt = time.Now().UTC()
	}
	var universe any
	if hub.UniverseID != nil {
		universe = hub.UniverseID.String()
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO hubs (id, universe_id, display_name, created_at)
		VALUES (?, ?, ?, ?)`,
		hub.ID.String(), universe, hub.DisplayName, hub.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create hub: %w", err)
	}
	return nil
}

// FindHubByDisplayName performs the case-insensitive lookup used for hub
// reuse during ingestion. With several collisions the oldest hub wins, which
// keeps ingestion deterministic until the arbiter merges them.
func (s *Store) FindHubByDisplayName(ctx context.Context, name string) (*models.Hub, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, universe_id, display_name, created_at
		FROM hubs WHERE display_name = ? COLLATE NOCASE
		ORDER BY created_at LIMIT 1`, strings.TrimSpace(name))
	return scanHub(row)
}

// GetHub loads one hub by id.
func (s *Store) GetHub(ctx context.Context, id uuid.UUID) (*models.Hub, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, universe_id, display_name, created_at
		FROM hubs WHERE id = ?`, id.String())
	return scanHub(row)
}

// CreateWork persists a new work under its hub.
func (s *Store) CreateWork(ctx context.Context, work *models.Work) error {
	if work.ID == uuid.Nil {
		work.ID = uuid.New()
	}
	if work.CreatedAt.IsZero() {
		work.CreatedAt = time.Now().UTC()
	}
	var hubID any
	if work.HubID != nil {
		hubID = work.HubID.String()
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO works (id, hub_id, media_type, sequence_index, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		work.ID.String(), hubID, work.MediaType.String(), work.SequenceIndex, work.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create work: %w", err)
	}
	return nil
}

// CreateEdition persists a new edition under its work.
func (s *Store) CreateEdition(ctx context.Context, edition *models.Edition) error {
	if edition.ID == uuid.Nil {
		edition.ID = uuid.New()
	}
	if edition.CreatedAt.IsZero() {
		edition.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO editions (id, work_id, format_label, created_at)
		VALUES (?, ?, ?, ?)`,
		edition.ID.String(), edition.WorkID.String(), edition.FormatLabel, edition.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create edition: %w", err)
	}
	return nil
}

// GetEdition loads one edition by id. Returns ErrNotFound when absent.
func (s *Store) GetEdition(ctx context.Context, id uuid.UUID) (*models.Edition, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, work_id, format_label, created_at
		FROM editions WHERE id = ?`, id.String())

	var (
		e            models.Edition
		idStr, wkStr string
	)
	err := row.Scan(&idStr, &wkStr, &e.FormatLabel, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if e.ID, err = parseUUID(idStr); err != nil {
		return nil, err
	}
	if e.WorkID, err = parseUUID(wkStr); err != nil {
		return nil, err
	}
	return &e, nil
}

// ReassignWork moves a work under a different hub after an auto-link
// decision. The work's editions and assets follow implicitly.
func (s *Store) ReassignWork(ctx context.Context, workID, hubID uuid.UUID) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE works SET hub_id = ? WHERE id = ?`, hubID.String(), workID.String())
	if err != nil {
		return fmt.Errorf("failed to reassign work: %w", err)
	}
	return nil
}

// ListWorksByHub returns the works attached to one hub, oldest first.
func (s *Store) ListWorksByHub(ctx context.Context, hubID uuid.UUID) ([]*models.Work, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, hub_id, media_type, sequence_index, created_at
		FROM works WHERE hub_id = ? ORDER BY created_at`, hubID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer closeQuietly(rows)
	return collectWorks(rows)
}

// ListHubs loads every hub with its works and each work's canonical values.
//
// The load is the two-query pattern: one LEFT JOIN for hubs and works ordered
// by creation, then a single IN-list query for canonical values over the
// collected work ids. This avoids N+1 without constructing reference cycles;
// parents are built first and children attached by id lookup.
func (s *Store) ListHubs(ctx context.Context) ([]*models.Hub, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT h.id, h.universe_id, h.display_name, h.created_at,
		       w.id, w.media_type, w.sequence_index, w.created_at
		FROM hubs h
		LEFT JOIN works w ON w.hub_id = h.id
		ORDER BY h.created_at, w.created_at`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer closeQuietly(rows)

	var (
		hubs    []*models.Hub
		byID    = make(map[uuid.UUID]*models.Hub)
		workIDs []uuid.UUID
		works   = make(map[uuid.UUID]*models.Work)
	)
	for rows.Next() {
		var (
			hubIDStr, name       string
			universe             sql.NullString
			hubCreated           time.Time
			workIDStr, mediaType sql.NullString
			seqIndex             sql.NullFloat64
			workCreated          sql.NullTime
		)
		if err := rows.Scan(&hubIDStr, &universe, &name, &hubCreated,
			&workIDStr, &mediaType, &seqIndex, &workCreated); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		hubID, err := parseUUID(hubIDStr)
		if err != nil {
			return nil, err
		}
		hub, ok := byID[hubID]
		if !ok {
			hub = &models.Hub{ID: hubID, DisplayName: name, CreatedAt: hubCreated}
			if universe.Valid {
				if uid, err := parseUUID(universe.String); err == nil {
					hub.UniverseID = &uid
				}
			}
			byID[hubID] = hub
			hubs = append(hubs, hub)
		}

		if !workIDStr.Valid {
			continue // hub without works (LEFT JOIN)
		}
		workID, err := parseUUID(workIDStr.String)
		if err != nil {
			return nil, err
		}
		hid := hubID
		work := &models.Work{
			ID:        workID,
			HubID:     &hid,
			MediaType: models.ParseMediaType(mediaType.String),
			CreatedAt: workCreated.Time,
		}
		if seqIndex.Valid {
			v := seqIndex.Float64
			work.SequenceIndex = &v
		}
		hub.Works = append(hub.Works, work)
		works[workID] = work
		workIDs = append(workIDs, workID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	canonical, err := s.ListCanonicalForEntities(ctx, workIDs)
	if err != nil {
		return nil, err
	}
	for id, values := range canonical {
		if w, ok := works[id]; ok {
			w.CanonicalValues = values
		}
	}

	return hubs, nil
}

// SearchHubs returns up to limit hubs whose display name contains q,
// case-insensitively, best (shortest) names first.
func (s *Store) SearchHubs(ctx context.Context, q string, limit int) ([]*models.Hub, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, universe_id, display_name, created_at
		FROM hubs
		WHERE display_name LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY length(display_name), created_at
		LIMIT ?`, strings.TrimSpace(q), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer closeQuietly(rows)

	var hubs []*models.Hub
	for rows.Next() {
		hub, err := scanHubRow(rows)
		if err != nil {
			return nil, err
		}
		hubs = append(hubs, hub)
	}
	return hubs, rows.Err()
}

func scanHub(row *sql.Row) (*models.Hub, error) {
	var (
		hub      models.Hub
		idStr    string
		universe sql.NullString
	)
	err := row.Scan(&idStr, &universe, &hub.DisplayName, &hub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if hub.ID, err = parseUUID(idStr); err != nil {
		return nil, err
	}
	if universe.Valid {
		if uid, err := parseUUID(universe.String); err == nil {
			hub.UniverseID = &uid
		}
	}
	return &hub, nil
}

func scanHubRow(rows *sql.Rows) (*models.Hub, error) {
	var (
		hub      models.Hub
		idStr    string
		universe sql.NullString
	)
	if err := rows.Scan(&idStr, &universe, &hub.DisplayName, &hub.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var err error
	if hub.ID, err = parseUUID(idStr); err != nil {
		return nil, err
	}
	if universe.Valid {
		if uid, err := parseUUID(universe.String); err == nil {
			hub.UniverseID = &uid
		}
	}
	return &hub, nil
}

func collectWorks(rows *sql.Rows) ([]*models.Work, error) {
	var works []*models.Work
	for rows.Next() {
		var (
			w         models.Work
			idStr     string
			hubID     sql.NullString
			mediaType string
			seqIndex  sql.NullFloat64
		)
		if err := rows.Scan(&idStr, &hubID, &mediaType, &seqIndex, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		var err error
		if w.ID, err = parseUUID(idStr); err != nil {
			return nil, err
		}
		if hubID.Valid {
			if hid, err := parseUUID(hubID.String); err == nil {
				w.HubID = &hid
			}
		}
		w.MediaType = models.ParseMediaType(mediaType)
		if seqIndex.Valid {
			v := seqIndex.Float64
			w.SequenceIndex = &v
		}
		works = append(works, &w)
	}
	return works, rows.Err()
}
