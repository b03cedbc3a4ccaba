// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package scoring implements the per-field weighted-voter arbitration that
// turns competing metadata claims into canonical values.
//
// The engine is deterministic and pure: it performs no I/O, takes no clock
// (the caller supplies Now), and produces identical output for any
// permutation of the input claim list.
package scoring

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlib/hearth/internal/models"
)

// Config holds the arbitration thresholds. DefaultConfig matches the
// engine-wide defaults; the values normally come from the config file.
type Config struct {
	AutoLinkThreshold float64
	ConflictThreshold float64
	ConflictEpsilon   float64
	// StaleDecayDays of 0 disables decay entirely.
	StaleDecayDays   int
	StaleDecayFactor float64
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		AutoLinkThreshold: 0.85,
		ConflictThreshold: 0.60,
		ConflictEpsilon:   0.05,
		StaleDecayDays:    90,
		StaleDecayFactor:  0.8,
	}
}

// Context carries everything one scoring pass needs.
type Context struct {
	EntityID uuid.UUID
	Claims   []models.MetadataClaim
	// ProviderWeights maps provider id to its global voting weight.
	ProviderWeights map[string]float64
	// ProviderFieldWeights optionally overrides the global weight per field.
	ProviderFieldWeights map[string]map[string]float64
	Config               Config
	// Now anchors stale-claim decay. Scoring never reads the wall clock.
	Now time.Time
}

// FieldScore is the arbitration outcome for one claim key.
type FieldScore struct {
	Key               string  `json:"key"`
	Value             string  `json:"value"`
	Confidence        float64 `json:"confidence"`
	WinningProviderID string  `json:"winning_provider_id,omitempty"`
	Conflicted        bool    `json:"conflicted"`
}

// Result is the scored outcome for one entity.
type Result struct {
	EntityID          uuid.UUID    `json:"entity_id"`
	FieldScores       []FieldScore `json:"field_scores"`
	OverallConfidence float64      `json:"overall_confidence"`
	ScoredAt          time.Time    `json:"scored_at"`
}

// errNoClaims is the resolver's error variant; a field returning it is
// skipped without aborting the entity.
var errNoClaims = errors.New("scoring: field has no claims")

// Score arbitrates all claims in ctx into one Result.
//
// Fields are resolved independently; a resolver failure on one field never
// aborts the others. Overall confidence is the arithmetic mean of winning
// field confidences, 0 when no field resolved.
func Score(ctx Context) Result {
	result := Result{
		EntityID: ctx.EntityID,
		ScoredAt: ctx.Now,
	}

	groups := groupByKey(ctx.Claims)

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var confidenceSum float64
	for _, key := range keys {
		fs, err := resolveField(ctx, key, groups[key])
		if err != nil {
			// Isolation: a failed field is skipped silently.
			continue
		}
		result.FieldScores = append(result.FieldScores, fs)
		confidenceSum += fs.Confidence
	}

	if len(result.FieldScores) > 0 {
		result.OverallConfidence = confidenceSum / float64(len(result.FieldScores))
	}
	return result
}

// groupByKey buckets claims by case-insensitive claim key.
func groupByKey(claims []models.MetadataClaim) map[string][]models.MetadataClaim {
	groups := make(map[string][]models.MetadataClaim)
	for _, c := range claims {
		key := strings.ToLower(strings.TrimSpace(c.Key))
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], c)
	}
	return groups
}

// resolveField arbitrates one field group.
func resolveField(ctx Context, key string, claims []models.MetadataClaim) (FieldScore, error) {
	if len(claims) == 0 {
		return FieldScore{}, errNoClaims
	}

	// Deterministic member order regardless of input permutation.
	sortClaims(claims)

	// User lock short-circuits: the most recent locked claim wins and the
	// weighted resolver is not invoked.
	if locked := latestLocked(claims); locked != nil {
		return FieldScore{
			Key:               key,
			Value:             locked.Value,
			Confidence:        1.0,
			WinningProviderID: locked.ProviderID,
			Conflicted:        false,
		}, nil
	}

	// Raw weight per claim: confidence x effective provider weight x stale
	// factor, clamped at zero.
	raw := make([]float64, len(claims))
	var total float64
	for i, c := range claims {
		w := c.Confidence * effectiveWeight(ctx, c.ProviderID, key) * staleFactor(ctx, c.ClaimedAt)
		if w < 0 {
			w = 0
		}
		raw[i] = w
		total += w
	}

	// Normalise to sum 1.0; all-zero distributes uniformly.
	norm := make([]float64, len(claims))
	for i := range raw {
		if total > 0 {
			norm[i] = raw[i] / total
		} else {
			norm[i] = 1.0 / float64(len(claims))
		}
	}

	// Group by normalised value and sum shares.
	type valueGroup struct {
		total     float64
		bestRaw   float64
		bestClaim models.MetadataClaim
	}
	byValue := make(map[string]*valueGroup)
	for i, c := range claims {
		nv := strings.ToLower(strings.TrimSpace(c.Value))
		g, ok := byValue[nv]
		if !ok {
			g = &valueGroup{bestRaw: -1}
			byValue[nv] = g
		}
		g.total += norm[i]
		if raw[i] > g.bestRaw {
			g.bestRaw = raw[i]
			g.bestClaim = c
		}
	}

	// Winner = highest total share; ties break on the normalised value so
	// the outcome is permutation independent.
	var (
		winner   *valueGroup
		runnerUp float64
	)
	normValues := make([]string, 0, len(byValue))
	for nv := range byValue {
		normValues = append(normValues, nv)
	}
	sort.Strings(normValues)
	for _, nv := range normValues {
		g := byValue[nv]
		if winner == nil || g.total > winner.total {
			if winner != nil && winner.total > runnerUp {
				runnerUp = winner.total
			}
			winner = g
		} else if g.total > runnerUp {
			runnerUp = g.total
		}
	}

	conflicted := false
	if winner.total > 0 && runnerUp > 0 {
		conflicted = runnerUp/winner.total >= 1.0-ctx.Config.ConflictEpsilon
	}

	return FieldScore{
		Key:               key,
		Value:             winner.bestClaim.Value,
		Confidence:        winner.total,
		WinningProviderID: winner.bestClaim.ProviderID,
		Conflicted:        conflicted,
	}, nil
}

// latestLocked returns the most recent user-locked claim, or nil. With equal
// timestamps the sort order (provider, then value) decides, keeping the
// outcome deterministic.
func latestLocked(claims []models.MetadataClaim) *models.MetadataClaim {
	var latest *models.MetadataClaim
	for i := range claims {
		c := &claims[i]
		if !c.IsUserLocked {
			continue
		}
		if latest == nil || c.ClaimedAt.After(latest.ClaimedAt) {
			latest = c
		}
	}
	return latest
}

// effectiveWeight resolves the provider's voting weight for a field:
// field override, else global weight, else 1.0.
func effectiveWeight(ctx Context, providerID, key string) float64 {
	if fw, ok := ctx.ProviderFieldWeights[providerID]; ok {
		if w, ok := fw[key]; ok {
			return w
		}
	}
	if w, ok := ctx.ProviderWeights[providerID]; ok {
		return w
	}
	return 1.0
}

// staleFactor decays claims older than the configured horizon. A horizon of
// zero days disables decay.
func staleFactor(ctx Context, claimedAt time.Time) float64 {
	if ctx.Config.StaleDecayDays <= 0 {
		return 1.0
	}
	age := ctx.Now.Sub(claimedAt)
	if age <= time.Duration(ctx.Config.StaleDecayDays)*24*time.Hour {
		return 1.0
	}
	return ctx.Config.StaleDecayFactor
}

// sortClaims orders claims by (claimed_at, provider, value, id) so every
// downstream decision is independent of input ordering.
func sortClaims(claims []models.MetadataClaim) {
	sort.SliceStable(claims, func(i, j int) bool {
		a, b := claims[i], claims[j]
		if !a.ClaimedAt.Equal(b.ClaimedAt) {
			return a.ClaimedAt.Before(b.ClaimedAt)
		}
		if a.ProviderID != b.ProviderID {
			return a.ProviderID < b.ProviderID
		}
		if a.Value != b.Value {
			return a.Value < b.Value
		}
		return a.ID.String() < b.ID.String()
	})
}
