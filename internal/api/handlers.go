// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package api

import (
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"

	"github.com/hearthlib/hearth/internal/config"
	"github.com/hearthlib/hearth/internal/models"
	"github.com/hearthlib/hearth/internal/version"
	"github.com/hearthlib/hearth/internal/websocket"
)

const (
	searchMinQueryLen = 2
	searchMaxResults  = 20
)

// canonicalValueDTO trims the stored row to the wire shape.
type canonicalValueDTO struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type workDTO struct {
	ID              uuid.UUID           `json:"id"`
	MediaType       string              `json:"media_type"`
	SequenceIndex   *float64            `json:"sequence_index,omitempty"`
	CanonicalValues []canonicalValueDTO `json:"canonical_values"`
}

type hubDTO struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	Works       []workDTO `json:"works"`
}

func toHubDTO(hub *models.Hub) hubDTO {
	dto := hubDTO{
		ID:          hub.ID,
		DisplayName: hub.DisplayName,
		CreatedAt:   hub.CreatedAt,
		Works:       make([]workDTO, 0, len(hub.Works)),
	}
	for _, work := range hub.Works {
		w := workDTO{
			ID:              work.ID,
			MediaType:       work.MediaType.String(),
			SequenceIndex:   work.SequenceIndex,
			CanonicalValues: make([]canonicalValueDTO, 0, len(work.CanonicalValues)),
		}
		for _, cv := range work.CanonicalValues {
			w.CanonicalValues = append(w.CanonicalValues, canonicalValueDTO{Key: cv.Key, Value: cv.Value})
		}
		dto.Works = append(dto.Works, w)
	}
	return dto
}

// handleSystemStatus reports liveness and build version. Always public.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := s.store.Ping(r.Context()); err != nil {
		status = "degraded"
	}
	writeSuccess(w, map[string]string{
		"status":     status,
		"version":    version.Version,
		"go_version": runtime.Version(),
	})
}

// handleListHubs returns every hub with works and canonical values.
func (s *Server) handleListHubs(w http.ResponseWriter, r *http.Request) {
	hubs, err := s.store.ListHubs(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	dtos := make([]hubDTO, 0, len(hubs))
	for _, hub := range hubs {
		dtos = append(dtos, toHubDTO(hub))
	}
	writeSuccess(w, dtos)
}

// handleSearchHubs matches display names case-insensitively. Queries
// under two characters are rejected rather than returning the world.
func (s *Server) handleSearchHubs(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len([]rune(q)) < searchMinQueryLen {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "query must be at least 2 characters")
		return
	}

	hubs, err := s.store.SearchHubs(r.Context(), q, searchMaxResults)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	dtos := make([]hubDTO, 0, len(hubs))
	for _, hub := range hubs {
		dtos = append(dtos, toHubDTO(hub))
	}
	writeSuccess(w, dtos)
}

type scanRequest struct {
	Root string `json:"root,omitempty"`
}

// handleScan runs a differential inbox scan in dry-run mode: new paths
// are reported, nothing is enqueued or mutated.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "malformed request body")
			return
		}
	}

	root := req.Root
	if root == "" {
		root = s.cfg.Watch.Root
	}

	stats, err := s.orch.Scan(r.Context(), root, true, nil)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "scan failed: "+err.Error())
		return
	}
	writeSuccess(w, stats)
}

type resolveRequest struct {
	EntityID string `json:"entity_id"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}

// handleResolveMetadata upserts a canonical value directly. This is the
// manual override path; the next re-score may replace it unless the
// field is also claim-locked.
func (s *Server) handleResolveMetadata(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "malformed request body")
		return
	}

	entityID, err := uuid.Parse(req.EntityID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFail, "entity_id must be a UUID")
		return
	}
	if req.Key == "" || req.Value == "" {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFail, "key and value are required")
		return
	}

	if err := s.store.UpsertCanonical(r.Context(), entityID, req.Key, req.Value, time.Now().UTC()); err != nil {
		writeStoreError(w, r, err)
		return
	}

	s.log.Info().
		Str("entity_id", entityID.String()).
		Str("key", req.Key).
		Msg("Canonical value resolved manually")
	writeSuccess(w, map[string]string{"entity_id": entityID.String(), "key": req.Key, "value": req.Value})
}

type lockClaimRequest struct {
	EntityID   string `json:"entity_id"`
	EntityType string `json:"entity_type,omitempty"`
	Key        string `json:"key"`
	Value      string `json:"value"`
}

// handleLockClaim appends a user-locked claim at full confidence and
// re-scores the entity. A locked claim wins every future vote for its
// key, so the canonical value flips immediately and stays put.
func (s *Server) handleLockClaim(w http.ResponseWriter, r *http.Request) {
	var req lockClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "malformed request body")
		return
	}

	entityID, err := uuid.Parse(req.EntityID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFail, "entity_id must be a UUID")
		return
	}
	if req.Key == "" || req.Value == "" {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFail, "key and value are required")
		return
	}

	entityType := models.EntityType(req.EntityType)
	switch entityType {
	case "":
		entityType = models.EntityTypeWork
	case models.EntityTypeWork, models.EntityTypeEdition:
	default:
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFail, "entity_type must be work or edition")
		return
	}

	claim := &models.MetadataClaim{
		ID:           uuid.New(),
		EntityID:     entityID,
		EntityType:   entityType,
		ProviderID:   "user",
		Key:          req.Key,
		Value:        req.Value,
		Confidence:   1.0,
		ClaimedAt:    time.Now().UTC(),
		IsUserLocked: true,
	}
	if err := s.store.AppendClaim(r.Context(), claim); err != nil {
		writeStoreError(w, r, err)
		return
	}

	if err := s.orch.Rescore(r.Context(), entityID); err != nil {
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "re-score failed: "+err.Error())
		return
	}

	s.log.Info().
		Str("entity_id", entityID.String()).
		Str("key", req.Key).
		Msg("Claim locked by user")
	writeSuccess(w, claim)
}

// handleUpdateConfig replaces the on-disk configuration document. The
// previous primary rotates to the .bak slot and a CONFIG_CHANGED event
// goes out on the bus. Most settings take effect on restart.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var incoming config.Config
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "malformed request body")
		return
	}

	if err := incoming.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, ErrCodeValidationFail, err.Error())
		return
	}

	if err := config.SaveAndNotify(s.ConfigPath, &incoming, s.Publisher); err != nil {
		s.log.Error().Err(err).Str("path", s.ConfigPath).Msg("Config save failed")
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "failed to persist configuration")
		return
	}

	s.log.Info().Str("path", s.ConfigPath).Msg("Configuration replaced")
	writeSuccess(w, map[string]string{"path": s.ConfigPath})
}

// upgrader accepts any origin: the API is a local-first surface and
// browser clients are expected to connect from file:// or localhost.
var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebsocket upgrades the connection and attaches it to the hub.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeInternalError, "realtime hub not running")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	websocket.NewClient(s.hub, conn, s.log).Start()
}
