// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package scoring

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlib/hearth/internal/models"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func claim(provider, key, value string, confidence float64, at time.Time, locked bool) models.MetadataClaim {
	return models.MetadataClaim{
		ID:           uuid.New(),
		ProviderID:   provider,
		Key:          key,
		Value:        value,
		Confidence:   confidence,
		ClaimedAt:    at,
		IsUserLocked: locked,
	}
}

func testContext(claims []models.MetadataClaim) Context {
	return Context{
		EntityID:        uuid.New(),
		Claims:          claims,
		ProviderWeights: map[string]float64{},
		Config:          DefaultConfig(),
		Now:             testNow,
	}
}

func fieldByKey(t *testing.T, r Result, key string) FieldScore {
	t.Helper()
	for _, fs := range r.FieldScores {
		if fs.Key == key {
			return fs
		}
	}
	t.Fatalf("no field score for key %q", key)
	return FieldScore{}
}

func TestEmptyClaimSet(t *testing.T) {
	r := Score(testContext(nil))
	if r.OverallConfidence != 0 {
		t.Errorf("OverallConfidence = %v, want 0", r.OverallConfidence)
	}
	if len(r.FieldScores) != 0 {
		t.Errorf("FieldScores = %d, want 0", len(r.FieldScores))
	}
}

func TestSingleClaimPerField(t *testing.T) {
	r := Score(testContext([]models.MetadataClaim{
		claim("local-filesystem", "title", "Dune", 1.0, testNow, false),
		claim("local-filesystem", "isbn", "9780441013593", 1.0, testNow, false),
	}))

	for _, key := range []string{"title", "isbn"} {
		fs := fieldByKey(t, r, key)
		if fs.Confidence != 1.0 {
			t.Errorf("%s confidence = %v, want 1.0", key, fs.Confidence)
		}
		if fs.Conflicted {
			t.Errorf("%s conflicted = true, want false", key)
		}
	}
	if r.OverallConfidence != 1.0 {
		t.Errorf("OverallConfidence = %v, want 1.0", r.OverallConfidence)
	}
}

// Two providers disagree on the title; the heavier local claim wins without
// crossing the conflict threshold (0.412 < 0.95 of 0.588).
func TestDisagreementBelowConflictEpsilon(t *testing.T) {
	ctx := testContext([]models.MetadataClaim{
		claim("local-filesystem", "title", "Dune", 1.0, testNow, false),
		claim("openlibrary", "title", "Dune: Book One", 1.0, testNow, false),
	})
	ctx.ProviderWeights = map[string]float64{
		"local-filesystem": 1.0,
		"openlibrary":      0.7,
	}

	fs := fieldByKey(t, Score(ctx), "title")
	if fs.Value != "Dune" {
		t.Errorf("winner = %q, want Dune", fs.Value)
	}
	if fs.Conflicted {
		t.Error("conflicted = true, want false")
	}
	want := 1.0 / 1.7
	if math.Abs(fs.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", fs.Confidence, want)
	}
	if fs.WinningProviderID != "local-filesystem" {
		t.Errorf("winning provider = %q, want local-filesystem", fs.WinningProviderID)
	}
}

func TestUserLockDominance(t *testing.T) {
	ctx := testContext([]models.MetadataClaim{
		claim("local-filesystem", "title", "Dune", 1.0, testNow.Add(-2*time.Hour), false),
		claim("openlibrary", "title", "Dune: Book One", 1.0, testNow.Add(-time.Hour), false),
		claim("user", "title", "Dune (Special Edition)", 0.3, testNow, true),
	})

	fs := fieldByKey(t, Score(ctx), "title")
	if fs.Value != "Dune (Special Edition)" {
		t.Errorf("winner = %q, want the locked value", fs.Value)
	}
	if fs.Confidence != 1.0 {
		t.Errorf("locked confidence = %v, want 1.0", fs.Confidence)
	}
	if fs.Conflicted {
		t.Error("locked field must not be conflicted")
	}
}

// Two user locks on the same field resolve by most-recent-wins.
func TestCompetingUserLocksMostRecentWins(t *testing.T) {
	ctx := testContext([]models.MetadataClaim{
		claim("user", "title", "First Lock", 1.0, testNow.Add(-time.Hour), true),
		claim("user", "title", "Second Lock", 1.0, testNow, true),
	})

	fs := fieldByKey(t, Score(ctx), "title")
	if fs.Value != "Second Lock" {
		t.Errorf("winner = %q, want Second Lock", fs.Value)
	}
}

func TestAllWeightsZeroUniform(t *testing.T) {
	ctx := testContext([]models.MetadataClaim{
		claim("a", "title", "Dune", 0, testNow, false),
		claim("b", "title", "Dune", 0, testNow, false),
		claim("c", "title", "Dune", 0, testNow, false),
	})

	fs := fieldByKey(t, Score(ctx), "title")
	if math.Abs(fs.Confidence-1.0) > 1e-9 {
		t.Errorf("uniform same-value confidence = %v, want 1.0", fs.Confidence)
	}
	if fs.Conflicted {
		t.Error("conflicted = true, want false")
	}
}

func TestRunnerUpAtEpsilonBoundaryConflicts(t *testing.T) {
	// Winner share w, runner-up exactly (1-epsilon) x w.
	cfg := DefaultConfig() // epsilon 0.05
	ctx := testContext([]models.MetadataClaim{
		claim("a", "title", "Alpha", 1.0, testNow, false),
		claim("b", "title", "Beta", 0.95, testNow, false),
	})
	ctx.Config = cfg

	fs := fieldByKey(t, Score(ctx), "title")
	if fs.Value != "Alpha" {
		t.Errorf("winner = %q, want Alpha", fs.Value)
	}
	if !fs.Conflicted {
		t.Error("runner-up exactly at 1-epsilon must flag a conflict")
	}
}

func TestStaleDecayDisabledAtZeroDays(t *testing.T) {
	old := testNow.Add(-365 * 24 * time.Hour)
	ctx := testContext([]models.MetadataClaim{
		claim("a", "title", "Fresh", 1.0, testNow, false),
		claim("b", "title", "Old", 1.0, old, false),
	})
	ctx.Config.StaleDecayDays = 0

	fs := fieldByKey(t, Score(ctx), "title")
	// Without decay both claims carry equal weight: a tie, which conflicts.
	if !fs.Conflicted {
		t.Error("equal-weight disagreement must conflict when decay is disabled")
	}
}

func TestStaleDecayDemotesOldClaims(t *testing.T) {
	old := testNow.Add(-365 * 24 * time.Hour)
	ctx := testContext([]models.MetadataClaim{
		claim("a", "title", "Fresh", 1.0, testNow, false),
		claim("b", "title", "Old", 1.0, old, false),
	})

	fs := fieldByKey(t, Score(ctx), "title")
	if fs.Value != "Fresh" {
		t.Errorf("winner = %q, want the fresh claim", fs.Value)
	}
	want := 1.0 / 1.8 // fresh 1.0 vs old 0.8
	if math.Abs(fs.Confidence-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", fs.Confidence, want)
	}
}

func TestFieldWeightOverridesGlobal(t *testing.T) {
	ctx := testContext([]models.MetadataClaim{
		claim("specialist", "isbn", "9780441013593", 1.0, testNow, false),
		claim("generalist", "isbn", "9999999999999", 1.0, testNow, false),
	})
	ctx.ProviderWeights = map[string]float64{"specialist": 0.1, "generalist": 1.0}
	ctx.ProviderFieldWeights = map[string]map[string]float64{
		"specialist": {"isbn": 5.0},
	}

	fs := fieldByKey(t, Score(ctx), "isbn")
	if fs.WinningProviderID != "specialist" {
		t.Errorf("winning provider = %q, want specialist (field override)", fs.WinningProviderID)
	}
}

// Scoring determinism: any permutation of the claim list yields the same
// result up to field order.
func TestPermutationInvariance(t *testing.T) {
	base := []models.MetadataClaim{
		claim("a", "title", "Dune", 0.9, testNow.Add(-time.Hour), false),
		claim("b", "title", "Dune: Book One", 0.8, testNow.Add(-2*time.Hour), false),
		claim("c", "title", "dune", 0.4, testNow.Add(-3*time.Hour), false),
		claim("a", "isbn", "9780441013593", 1.0, testNow, false),
		claim("b", "author", "Frank Herbert", 0.7, testNow, false),
		claim("c", "author", "F. Herbert", 0.6, testNow, false),
	}
	weights := map[string]float64{"a": 1.0, "b": 0.7, "c": 0.5}

	score := func(claims []models.MetadataClaim) Result {
		ctx := testContext(claims)
		ctx.EntityID = uuid.Nil
		ctx.ProviderWeights = weights
		return Score(ctx)
	}
	reference := score(base)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		shuffled := make([]models.MetadataClaim, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got := score(shuffled)
		if len(got.FieldScores) != len(reference.FieldScores) {
			t.Fatalf("trial %d: %d fields, want %d", trial, len(got.FieldScores), len(reference.FieldScores))
		}
		for i, fs := range got.FieldScores {
			ref := reference.FieldScores[i]
			if fs.Key != ref.Key || fs.Value != ref.Value || fs.Conflicted != ref.Conflicted {
				t.Fatalf("trial %d field %s: got %+v, want %+v", trial, fs.Key, fs, ref)
			}
			if math.Abs(fs.Confidence-ref.Confidence) > 1e-12 {
				t.Fatalf("trial %d field %s: confidence %v, want %v", trial, fs.Key, fs.Confidence, ref.Confidence)
			}
		}
		if math.Abs(got.OverallConfidence-reference.OverallConfidence) > 1e-12 {
			t.Fatalf("trial %d: overall %v, want %v", trial, got.OverallConfidence, reference.OverallConfidence)
		}
	}
}

// Normalisation: for any claim set with positive total raw weight the value
// group shares per field sum to 1.0.
func TestNormalisationSum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	providers := []string{"a", "b", "c", "d"}
	values := []string{"One", "Two", "Three"}

	for trial := 0; trial < 100; trial++ {
		n := 1 + rng.Intn(8)
		claims := make([]models.MetadataClaim, 0, n)
		for i := 0; i < n; i++ {
			claims = append(claims, claim(
				providers[rng.Intn(len(providers))],
				"title",
				values[rng.Intn(len(values))],
				0.05+rng.Float64()*0.95,
				testNow.Add(-time.Duration(rng.Intn(200))*24*time.Hour),
				false,
			))
		}
		ctx := testContext(claims)
		ctx.ProviderWeights = map[string]float64{"a": 1.0, "b": 0.8, "c": 0.5, "d": 0.2}

		r := Score(ctx)
		fs := fieldByKey(t, r, "title")
		if fs.Confidence <= 0 || fs.Confidence > 1+1e-9 {
			t.Fatalf("trial %d: winner share %v outside (0,1]", trial, fs.Confidence)
		}
	}
}

func TestKeysGroupedCaseInsensitively(t *testing.T) {
	r := Score(testContext([]models.MetadataClaim{
		claim("a", "Title", "Dune", 1.0, testNow, false),
		claim("b", "title", "Dune", 1.0, testNow, false),
		claim("c", "TITLE", "Dune", 1.0, testNow, false),
	}))
	if len(r.FieldScores) != 1 {
		t.Fatalf("got %d fields, want 1 (case-insensitive grouping)", len(r.FieldScores))
	}
	if r.FieldScores[0].Key != "title" {
		t.Errorf("key = %q, want normalised lowercase", r.FieldScores[0].Key)
	}
}
