// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package identity

import (
	"strings"

	"github.com/hearthlib/hearth/internal/models"
)

// Disposition is the verdict for a proposed hub link.
type Disposition string

const (
	AutoLinked  Disposition = "AutoLinked"
	NeedsReview Disposition = "NeedsReview"
	Rejected    Disposition = "Rejected"
)

// titleWeight is the share of fuzzy weight the title field receives when
// present; remaining keys split the rest equally.
const titleWeight = 0.5

// MatchResult reports the similarity of two canonical value sets.
type MatchResult struct {
	Similarity float64  `json:"similarity"`
	Hard       bool     `json:"hard"`
	MatchedIDs []string `json:"matched_ids,omitempty"`
}

// Matcher compares canonical value sets using a priority list of comparators.
type Matcher struct {
	comparators []Comparator
}

// NewMatcher builds a matcher with the default strategy list: exact hard
// identifiers, then normalised Levenshtein.
func NewMatcher() *Matcher {
	return &Matcher{comparators: defaultComparators}
}

// Match compares two canonical value sets.
//
// Pass 1 checks the fixed hard-identifier keys: any shared key with equal
// normalised value short-circuits to similarity 1.0. Pass 2 intersects the
// remaining keys and returns the weighted mean of per-key fuzzy scores, with
// the title field carrying half the total weight when present.
func (m *Matcher) Match(a, b []models.CanonicalValue) MatchResult {
	left := toMap(a)
	right := toMap(b)

	// Pass 1: hard identifiers.
	var matched []string
	for key, av := range left {
		if !IsHardIdentifier(key) {
			continue
		}
		bv, ok := right[key]
		if !ok {
			continue
		}
		na, nb := NormalizeIdentifier(av), NormalizeIdentifier(bv)
		if na != "" && na == nb {
			matched = append(matched, key)
		}
	}
	if len(matched) > 0 {
		return MatchResult{Similarity: 1.0, Hard: true, MatchedIDs: matched}
	}

	// Pass 2: fuzzy over the intersection of non-hard keys.
	var shared []string
	for key := range left {
		if IsHardIdentifier(key) {
			continue
		}
		if _, ok := right[key]; ok {
			shared = append(shared, key)
		}
	}
	if len(shared) == 0 {
		return MatchResult{Similarity: 0}
	}

	hasTitle := false
	for _, key := range shared {
		if key == "title" {
			hasTitle = true
			break
		}
	}

	var similarity float64
	for _, key := range shared {
		var weight float64
		switch {
		case hasTitle && len(shared) == 1:
			weight = 1.0 // title alone carries everything
		case hasTitle && key == "title":
			weight = titleWeight
		case hasTitle:
			weight = (1.0 - titleWeight) / float64(len(shared)-1)
		default:
			weight = 1.0 / float64(len(shared))
		}
		similarity += weight * m.compare(key, left[key], right[key])
	}

	return MatchResult{Similarity: similarity}
}

// compare dispatches to the first comparator that applies to the key.
func (m *Matcher) compare(key, a, b string) float64 {
	for _, c := range m.comparators {
		if c.AppliesTo(key) {
			return c.Compare(key, a, b)
		}
	}
	return 0
}

// Disposition maps a similarity to a verdict against the configured
// thresholds.
func (m *Matcher) Disposition(similarity, autoLinkThreshold, conflictThreshold float64) Disposition {
	switch {
	case similarity >= autoLinkThreshold:
		return AutoLinked
	case similarity >= conflictThreshold:
		return NeedsReview
	default:
		return Rejected
	}
}

func toMap(values []models.CanonicalValue) map[string]string {
	out := make(map[string]string, len(values))
	for _, v := range values {
		out[strings.ToLower(strings.TrimSpace(v.Key))] = v.Value
	}
	return out
}
