// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package ingest drives the per-candidate pipeline: hash, extract,
// claim, score, chain, store, organise, enrich, publish. Each candidate
// is processed sequentially within itself; candidates run in parallel
// under the bounded worker.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hearthlib/hearth/internal/catalog"
	"github.com/hearthlib/hearth/internal/chain"
	"github.com/hearthlib/hearth/internal/config"
	"github.com/hearthlib/hearth/internal/enrich"
	"github.com/hearthlib/hearth/internal/events"
	"github.com/hearthlib/hearth/internal/hashing"
	"github.com/hearthlib/hearth/internal/identity"
	"github.com/hearthlib/hearth/internal/journal"
	"github.com/hearthlib/hearth/internal/models"
	"github.com/hearthlib/hearth/internal/organize"
	"github.com/hearthlib/hearth/internal/processor"
	"github.com/hearthlib/hearth/internal/scoring"
	"github.com/hearthlib/hearth/internal/watcher"
)

// State is the terminal disposition of one candidate. Only Library
// persists an asset.
type State string

const (
	StateLibrary     State = "Library"
	StateRejected    State = "Rejected"
	StateLockTimeout State = "LockTimeout"
	// StateSkipped covers duplicates, vanished files and orphan
	// handling: nothing was staged, nothing failed.
	StateSkipped State = "Skipped"
)

// localProviderID stamps claims extracted by in-process processors.
const localProviderID = "local-filesystem"

// Outcome reports what one candidate became.
type Outcome struct {
	State     State
	Reason    string
	AssetID   uuid.UUID
	HubID     uuid.UUID
	WorkID    uuid.UUID
	EditionID uuid.UUID
	Organized string // final library path, empty when not organised
}

// Enricher is the background enrichment hook. Failures never fail
// ingestion.
type Enricher interface {
	Enrich(ctx context.Context, req enrich.Request) (int, error)
}

// Orchestrator owns the ingestion pipeline.
type Orchestrator struct {
	cfg       *config.Config
	store     *catalog.Store
	registry  *processor.Registry
	factory   *chain.Factory
	arbiter   *identity.Arbiter
	organizer *organize.Organizer
	journal   *journal.Journal
	publisher events.Publisher
	enricher  Enricher
	log       zerolog.Logger

	// Provider voting weights, swapped live on config change.
	weightsMu    sync.RWMutex
	weights      map[string]float64
	fieldWeights map[string]map[string]float64
}

// New wires the orchestrator. journal and enricher may be nil; the
// publisher must not be (use events.Nop{} for headless hosts).
func New(
	cfg *config.Config,
	store *catalog.Store,
	registry *processor.Registry,
	organizer *organize.Organizer,
	jnl *journal.Journal,
	publisher events.Publisher,
	enricher Enricher,
	logger zerolog.Logger,
) *Orchestrator {
	matcher := identity.NewMatcher()
	weights, fieldWeights := cfg.ProviderWeights()
	return &Orchestrator{
		weights:      weights,
		fieldWeights: fieldWeights,
		cfg:          cfg,
		store:        store,
		registry:     registry,
		factory:      chain.NewFactory(store),
		arbiter:      identity.NewArbiter(store, matcher, cfg.Scoring.AutoLinkThreshold, cfg.Scoring.ConflictThreshold),
		organizer:    organizer,
		journal:      jnl,
		publisher:    publisher,
		enricher:     enricher,
		log:          logger,
	}
}

// Ingest runs one candidate through the full pipeline. Errors abort
// only this candidate; in-flight siblings are unaffected.
func (o *Orchestrator) Ingest(ctx context.Context, cand watcher.Candidate) (*Outcome, error) {
	log := o.log.With().Str("path", cand.Path).Logger()

	if cand.Event.Type == watcher.EventDeleted || cand.Event.Type == watcher.EventRenamed {
		return o.handleDeleted(ctx, cand)
	}

	if cand.IsFailed {
		o.recordPending(cand.Path, cand.FailReason)
		o.logEvent(ctx, "CANDIDATE_FAILED", "candidate", cand.Path)
		o.publisher.Publish(events.Event{
			Name:   models.EventCandidateFailed,
			Detail: map[string]string{"path": cand.Path, "reason": cand.FailReason},
		})
		log.Warn().Str("reason", cand.FailReason).Msg("Candidate failed before staging")
		return &Outcome{State: StateLockTimeout, Reason: cand.FailReason}, nil
	}

	if _, err := os.Stat(cand.Path); err != nil {
		o.resolvePending(cand.Path)
		o.publisher.Publish(events.Event{
			Name:   models.EventCandidateFailed,
			Detail: map[string]string{"path": cand.Path, "reason": "file vanished before staging"},
		})
		return &Outcome{State: StateSkipped, Reason: "file vanished before staging"}, nil
	}

	o.recordPending(cand.Path, "staging")

	digest, err := hashing.HashFile(ctx, cand.Path)
	if err != nil {
		return nil, fmt.Errorf("hashing candidate: %w", err)
	}

	// Content hash is the identity anchor; a known hash is the same
	// file no matter what it is called now.
	switch existing, err := o.store.FindAssetByHash(ctx, digest.Hex); {
	case err == nil:
		o.resolvePending(cand.Path)
		o.publisher.Publish(events.Event{
			Name:       models.EventDuplicateSkipped,
			EntityID:   existing.ID,
			EntityType: "asset",
			Detail:     map[string]string{"path": cand.Path, "hash": digest.Hex},
		})
		o.logEvent(ctx, "DUPLICATE_SKIPPED", "asset", existing.ID.String())
		log.Debug().Str("hash", digest.Hex).Msg("Duplicate content hash, skipping")
		return &Outcome{State: StateSkipped, Reason: "duplicate content hash", AssetID: existing.ID}, nil
	case !errors.Is(err, catalog.ErrNotFound):
		return nil, fmt.Errorf("hash lookup: %w", err)
	}

	res, err := o.registry.Process(ctx, cand.Path)
	if err != nil {
		return nil, fmt.Errorf("processing candidate: %w", err)
	}
	if res.IsCorrupt {
		return o.handleCorrupt(ctx, cand, res)
	}

	// The edition id is pre-assigned so claims recorded now already
	// point at the entity the chain factory will create.
	editionID := uuid.New()
	now := time.Now().UTC()

	claims := make([]models.MetadataClaim, 0, len(res.Claims))
	for _, ec := range res.Claims {
		claim := models.MetadataClaim{
			ID:         uuid.New(),
			EntityID:   editionID,
			EntityType: models.EntityTypeEdition,
			ProviderID: localProviderID,
			Key:        ec.Key,
			Value:      ec.Value,
			Confidence: ec.Confidence,
			ClaimedAt:  now,
		}
		if err := o.store.AppendClaim(ctx, &claim); err != nil {
			return nil, fmt.Errorf("appending claim: %w", err)
		}
		claims = append(claims, claim)
	}

	score := o.score(editionID, claims, now)

	conflicted := false
	metadata := make(map[string]string, len(score.FieldScores))
	for _, fs := range score.FieldScores {
		if err := o.store.UpsertCanonical(ctx, editionID, fs.Key, fs.Value, now); err != nil {
			return nil, fmt.Errorf("upserting canonical: %w", err)
		}
		metadata[fs.Key] = fs.Value
		conflicted = conflicted || fs.Conflicted
	}

	chainRes, err := o.factory.Ensure(ctx, res.DetectedType, metadata, editionID)
	if err != nil {
		return nil, err
	}

	// Works carry the scored identity: the arbiter and the catalogue
	// API read canonical values per work, not per edition.
	workValues := make([]models.CanonicalValue, 0, len(score.FieldScores))
	for _, fs := range score.FieldScores {
		if err := o.store.UpsertCanonical(ctx, chainRes.WorkID, fs.Key, fs.Value, now); err != nil {
			return nil, fmt.Errorf("mirroring canonical to work: %w", err)
		}
		workValues = append(workValues, models.CanonicalValue{
			EntityID: chainRes.WorkID, Key: fs.Key, Value: fs.Value, LastScoredAt: now,
		})
	}

	hubID, err := o.arbitrate(ctx, chainRes, workValues)
	if err != nil {
		return nil, err
	}

	status := models.AssetStatusNormal
	if conflicted {
		status = models.AssetStatusConflicted
	}
	asset := &models.MediaAsset{
		ID:           uuid.New(),
		EditionID:    editionID,
		ContentHash:  digest.Hex,
		FilePathRoot: cand.Path,
		Status:       status,
	}
	insert, err := o.store.InsertAsset(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("inserting asset: %w", err)
	}
	if insert == catalog.DuplicateHash {
		// Lost a race with a parallel candidate carrying the same
		// content.
		o.resolvePending(cand.Path)
		o.publisher.Publish(events.Event{
			Name:   models.EventDuplicateSkipped,
			Detail: map[string]string{"path": cand.Path, "hash": digest.Hex},
		})
		return &Outcome{State: StateSkipped, Reason: "duplicate content hash"}, nil
	}

	outcome := &Outcome{
		State:     StateLibrary,
		AssetID:   asset.ID,
		HubID:     hubID,
		WorkID:    chainRes.WorkID,
		EditionID: editionID,
	}

	if o.shouldOrganize(score, claims) {
		final, err := o.organize(ctx, cand.Path, metadata, res, chainRes, hubID, workValues, asset, digest.Hex)
		if err != nil {
			// The asset is catalogued; organisation can be retried on
			// the next startup via the recovery journal.
			o.recordPending(cand.Path, "organiser failed: "+err.Error())
			log.Warn().Err(err).Msg("Organiser failed, asset left in place")
		} else {
			outcome.Organized = final
			o.resolvePending(cand.Path)
		}
	} else {
		o.resolvePending(cand.Path)
	}

	o.enqueueEnrichment(ctx, chainRes.WorkID, res.DetectedType, metadata)

	o.logEvent(ctx, "MEDIA_ADDED", "asset", asset.ID.String())
	o.publisher.Publish(events.Event{
		Name:       models.EventMediaAdded,
		EntityID:   asset.ID,
		EntityType: "asset",
		Detail:     map[string]string{"path": cand.Path, "hash": digest.Hex},
	})
	if len(claims) > 0 {
		o.publisher.Publish(events.Event{
			Name:       models.EventMetadataHarvested,
			EntityID:   chainRes.WorkID,
			EntityType: "work",
			Detail:     map[string]string{"fields": fmt.Sprintf("%d", len(score.FieldScores))},
		})
	}

	o.pruneLog(ctx)

	log.Info().
		Str("asset_id", asset.ID.String()).
		Str("hub_id", hubID.String()).
		Float64("confidence", score.OverallConfidence).
		Msg("Candidate ingested")
	return outcome, nil
}

// Rescore re-arbitrates an entity's claims and refreshes its canonical
// values, mirroring to the owning work when the entity is an edition.
func (o *Orchestrator) Rescore(ctx context.Context, entityID uuid.UUID) error {
	claims, err := o.store.ListClaims(ctx, entityID)
	if err != nil {
		return fmt.Errorf("listing claims: %w", err)
	}

	now := time.Now().UTC()
	score := o.score(entityID, claims, now)
	for _, fs := range score.FieldScores {
		if err := o.store.UpsertCanonical(ctx, entityID, fs.Key, fs.Value, now); err != nil {
			return fmt.Errorf("upserting canonical: %w", err)
		}
	}

	if edition, err := o.store.GetEdition(ctx, entityID); err == nil {
		for _, fs := range score.FieldScores {
			if err := o.store.UpsertCanonical(ctx, edition.WorkID, fs.Key, fs.Value, now); err != nil {
				return fmt.Errorf("mirroring canonical to work: %w", err)
			}
		}
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("resolving edition: %w", err)
	}

	return nil
}

// ApplyProviderWeights swaps the provider voting weights used by
// subsequent scoring passes. Called when the configuration changes;
// claims already scored keep their canonical values until rescored.
func (o *Orchestrator) ApplyProviderWeights(weights map[string]float64, fieldWeights map[string]map[string]float64) {
	o.weightsMu.Lock()
	o.weights = weights
	o.fieldWeights = fieldWeights
	o.weightsMu.Unlock()
}

func (o *Orchestrator) score(entityID uuid.UUID, claims []models.MetadataClaim, now time.Time) scoring.Result {
	o.weightsMu.RLock()
	weights, fieldWeights := o.weights, o.fieldWeights
	o.weightsMu.RUnlock()
	return scoring.Score(scoring.Context{
		EntityID:             entityID,
		Claims:               claims,
		ProviderWeights:      weights,
		ProviderFieldWeights: fieldWeights,
		Config: scoring.Config{
			AutoLinkThreshold: o.cfg.Scoring.AutoLinkThreshold,
			ConflictThreshold: o.cfg.Scoring.ConflictThreshold,
			ConflictEpsilon:   o.cfg.Scoring.ConflictEpsilon,
			StaleDecayDays:    o.cfg.Scoring.StaleClaimDecayDays,
			StaleDecayFactor:  o.cfg.Scoring.StaleClaimDecayFactor,
		},
		Now: now,
	})
}

// arbitrate runs the hub arbiter over every other hub and applies an
// auto-link decision by reassigning the work. The display-name hub from
// the chain factory stands when nothing better is found.
func (o *Orchestrator) arbitrate(ctx context.Context, chainRes *chain.Result, workValues []models.CanonicalValue) (uuid.UUID, error) {
	hubs, err := o.store.ListHubs(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("listing candidate hubs: %w", err)
	}

	candidates := make([]uuid.UUID, 0, len(hubs))
	for _, h := range hubs {
		if h.ID != chainRes.HubID {
			candidates = append(candidates, h.ID)
		}
	}
	if len(candidates) == 0 {
		return chainRes.HubID, nil
	}

	decision, err := o.arbiter.Decide(ctx, chainRes.WorkID, workValues, candidates)
	if err != nil {
		return uuid.Nil, err
	}

	if decision.Disposition == identity.AutoLinked && decision.HubID != nil {
		if err := o.store.ReassignWork(ctx, chainRes.WorkID, *decision.HubID); err != nil {
			return uuid.Nil, err
		}
		o.log.Info().
			Str("work_id", chainRes.WorkID.String()).
			Str("hub_id", decision.HubID.String()).
			Str("reason", decision.Reason).
			Msg("Work auto-linked to existing hub")
		return *decision.HubID, nil
	}
	return chainRes.HubID, nil
}

// shouldOrganize applies the auto-organisation rule: confident enough,
// or pinned by a user lock.
func (o *Orchestrator) shouldOrganize(score scoring.Result, claims []models.MetadataClaim) bool {
	if score.OverallConfidence >= o.cfg.Scoring.AutoLinkThreshold {
		return true
	}
	for _, c := range claims {
		if c.IsUserLocked {
			return true
		}
	}
	return false
}

func (o *Orchestrator) organize(
	ctx context.Context,
	srcPath string,
	metadata map[string]string,
	res *processor.Result,
	chainRes *chain.Result,
	hubID uuid.UUID,
	workValues []models.CanonicalValue,
	asset *models.MediaAsset,
	contentHash string,
) (string, error) {
	hub, err := o.store.GetHub(ctx, hubID)
	if err != nil {
		return "", fmt.Errorf("loading hub for organiser: %w", err)
	}

	format := metadata["format"]
	if format == "" {
		format = res.DetectedType.String()
	}
	final, err := o.organizer.Place(ctx, srcPath, organize.Fields{
		Category: res.DetectedType.String(),
		HubName:  hub.DisplayName,
		Year:     metadata["year"],
		Format:   format,
		Edition:  metadata["edition"],
		Ext:      filepath.Ext(srcPath),
	})
	if err != nil {
		return "", err
	}

	if err := o.store.UpdateAssetPath(ctx, asset.ID.String(), final); err != nil {
		return "", err
	}

	sc := &organize.Sidecar{
		AssetID:     asset.ID.String(),
		EditionID:   chainRes.EditionID.String(),
		WorkID:      chainRes.WorkID.String(),
		HubID:       hubID.String(),
		HubName:     hub.DisplayName,
		MediaType:   res.DetectedType.String(),
		FormatLabel: format,
		ContentHash: contentHash,
	}
	for _, cv := range workValues {
		sc.Canonical = append(sc.Canonical, organize.SidecarCanonical{Key: cv.Key, Value: cv.Value})
	}
	if err := organize.WriteSidecar(final, sc); err != nil {
		return "", err
	}

	if _, err := o.organizer.WriteCover(final, res.CoverBytes, res.CoverMIME); err != nil {
		return "", err
	}
	return final, nil
}

func (o *Orchestrator) handleCorrupt(ctx context.Context, cand watcher.Candidate, res *processor.Result) (*Outcome, error) {
	dest, err := o.organizer.Quarantine(ctx, cand.Path)
	if err != nil {
		return nil, fmt.Errorf("quarantining corrupt file: %w", err)
	}

	o.resolvePending(cand.Path)
	o.logEvent(ctx, "ASSET_CORRUPT", "candidate", cand.Path)
	o.publisher.Publish(events.Event{
		Name:   models.EventAssetCorrupt,
		Detail: map[string]string{"path": cand.Path, "quarantined": dest, "reason": res.CorruptReason},
	})
	o.log.Warn().
		Str("path", cand.Path).
		Str("reason", res.CorruptReason).
		Msg("Corrupt input quarantined")
	return &Outcome{State: StateRejected, Reason: res.CorruptReason}, nil
}

// handleDeleted marks any asset at the vanished path Orphaned. The
// asset row is always preserved.
func (o *Orchestrator) handleDeleted(ctx context.Context, cand watcher.Candidate) (*Outcome, error) {
	assets, err := o.store.FindAssetsByPath(ctx, cand.Path)
	if err != nil {
		return nil, fmt.Errorf("orphan lookup: %w", err)
	}

	for _, a := range assets {
		if err := o.store.MarkAssetStatus(ctx, a.ID.String(), models.AssetStatusOrphaned); err != nil {
			return nil, fmt.Errorf("marking orphan: %w", err)
		}
		o.logEvent(ctx, "ASSET_ORPHANED", "asset", a.ID.String())
		o.publisher.Publish(events.Event{
			Name:       models.EventAssetOrphaned,
			EntityID:   a.ID,
			EntityType: "asset",
			Detail:     map[string]string{"path": cand.Path},
		})
	}

	o.resolvePending(cand.Path)
	reason := fmt.Sprintf("%d asset(s) marked orphaned", len(assets))
	return &Outcome{State: StateSkipped, Reason: reason}, nil
}

func (o *Orchestrator) enqueueEnrichment(ctx context.Context, workID uuid.UUID, mt models.MediaType, metadata map[string]string) {
	if o.enricher == nil {
		return
	}
	if _, err := o.enricher.Enrich(ctx, enrich.Request{
		EntityID:   workID,
		EntityType: models.EntityTypeWork,
		MediaType:  mt,
		Canonical:  metadata,
	}); err != nil {
		// Enrichment is best-effort; never fails ingestion.
		o.log.Warn().Err(err).Str("work_id", workID.String()).Msg("Background enrichment failed")
	}
}

func (o *Orchestrator) recordPending(path, reason string) {
	if o.journal == nil {
		return
	}
	if err := o.journal.RecordPending(path, reason); err != nil {
		o.log.Warn().Err(err).Str("path", path).Msg("Failed to journal pending candidate")
	}
}

func (o *Orchestrator) resolvePending(path string) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Resolve(path); err != nil {
		o.log.Warn().Err(err).Str("path", path).Msg("Failed to clear journal entry")
	}
}

func (o *Orchestrator) logEvent(ctx context.Context, eventType, entityType, entityID string) {
	if err := o.store.LogEvent(ctx, eventType, entityType, entityID); err != nil {
		o.log.Warn().Err(err).Str("event", eventType).Msg("Failed to write transaction log entry")
	}
}

func (o *Orchestrator) pruneLog(ctx context.Context) {
	if err := o.store.PruneLog(ctx, o.cfg.Maintenance.MaxTransactionLogEntries); err != nil {
		o.log.Warn().Err(err).Msg("Failed to prune transaction log")
	}
}
