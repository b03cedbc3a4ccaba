// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlib/hearth/internal/models"
)

// ArbiterStore is the slice of the catalogue the arbiter reads and journals
// through. The arbiter never creates hubs and never mutates works or hubs.
type ArbiterStore interface {
	ListWorksByHub(ctx context.Context, hubID uuid.UUID) ([]*models.Work, error)
	ListCanonical(ctx context.Context, entityID uuid.UUID) ([]models.CanonicalValue, error)
	LogEvent(ctx context.Context, eventType, entityType, entityID string) error
}

// Decision is the arbiter's verdict for placing a work against a hub.
type Decision struct {
	WorkID      uuid.UUID   `json:"work_id"`
	HubID       *uuid.UUID  `json:"hub_id,omitempty"` // nil on Rejected
	Score       float64     `json:"score"`
	Disposition Disposition `json:"disposition"`
	Reason      string      `json:"reason"`
	DecidedAt   time.Time   `json:"decided_at"`
}

// Arbiter decides how a work joins existing hubs.
type Arbiter struct {
	store             ArbiterStore
	matcher           *Matcher
	autoLinkThreshold float64
	conflictThreshold float64
}

// NewArbiter wires an arbiter over the given store and thresholds.
func NewArbiter(store ArbiterStore, matcher *Matcher, autoLink, conflict float64) *Arbiter {
	return &Arbiter{
		store:             store,
		matcher:           matcher,
		autoLinkThreshold: autoLink,
		conflictThreshold: conflict,
	}
}

// Decide scores workID against each candidate hub and returns the best
// placement. For every hub the score is the best pairwise similarity against
// its member works (excluding the work itself — the circular-link guard).
// A journal entry is written before returning.
func (a *Arbiter) Decide(ctx context.Context, workID uuid.UUID, workValues []models.CanonicalValue, candidates []uuid.UUID) (*Decision, error) {
	var (
		bestHub    *uuid.UUID
		bestScore  float64
		bestReason string
	)

	for _, hubID := range candidates {
		works, err := a.store.ListWorksByHub(ctx, hubID)
		if err != nil {
			return nil, fmt.Errorf("arbiter: failed to list hub works: %w", err)
		}

		// Circular-link guard: skip hubs the work already belongs to.
		member := false
		for _, w := range works {
			if w.ID == workID {
				member = true
				break
			}
		}
		if member {
			continue
		}

		hubScore := 0.0
		hubReason := ""
		for _, w := range works {
			values, err := a.store.ListCanonical(ctx, w.ID)
			if err != nil {
				return nil, fmt.Errorf("arbiter: failed to load canonical values: %w", err)
			}
			res := a.matcher.Match(workValues, values)
			if res.Similarity > hubScore {
				hubScore = res.Similarity
				if res.Hard {
					hubReason = fmt.Sprintf("hard identifier match (%s) with work %s",
						strings.Join(res.MatchedIDs, ","), w.ID)
				} else {
					hubReason = fmt.Sprintf("fuzzy similarity %.3f with work %s", res.Similarity, w.ID)
				}
			}
		}

		if hubScore > bestScore {
			bestScore = hubScore
			hid := hubID
			bestHub = &hid
			bestReason = hubReason
		}
	}

	disposition := a.matcher.Disposition(bestScore, a.autoLinkThreshold, a.conflictThreshold)
	decision := &Decision{
		WorkID:      workID,
		Score:       bestScore,
		Disposition: disposition,
		Reason:      bestReason,
		DecidedAt:   time.Now().UTC(),
	}

	var event string
	switch disposition {
	case AutoLinked:
		decision.HubID = bestHub
		event = models.EventWorkAutoLinked
	case NeedsReview:
		decision.HubID = bestHub
		event = models.EventWorkNeedsReview
	default:
		decision.HubID = nil
		if decision.Reason == "" {
			decision.Reason = "no candidate hub reached the conflict threshold"
		}
		event = models.EventWorkLinkRejected
	}

	// Journal before returning; the decision trail is part of the contract.
	if err := a.store.LogEvent(ctx, event, "work", workID.String()); err != nil {
		return nil, fmt.Errorf("arbiter: failed to journal decision: %w", err)
	}

	return decision, nil
}
