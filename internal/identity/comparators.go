// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package identity decides whether two entities describe the same
// intellectual work, and arbitrates where a new work should live among
// existing hubs.
//
// Comparison is strategy-dispatched: an ordered list of comparators is
// consulted per key and the first whose AppliesTo returns true wins.
package identity

import (
	"strings"
)

// hardIdentifierKeys are the claim keys whose equality proves identity
// outright, short-circuiting fuzzy comparison.
var hardIdentifierKeys = map[string]bool{
	"isbn":           true,
	"imdbid":         true,
	"tmdbid":         true,
	"ean":            true,
	"asin":           true,
	"musicbrainzid":  true,
	"openlibrary_id": true,
}

// uriPrefixes are stripped during hard-identifier normalisation, longest
// match first.
var uriPrefixes = []string{
	"urn:isbn:",
	"isbn:",
	"ean:",
	"asin:",
	"tt",
}

// Comparator scores the similarity of two values for a given key in [0,1].
type Comparator interface {
	// AppliesTo reports whether this comparator handles the key.
	AppliesTo(key string) bool
	// Compare returns the similarity of a and b.
	Compare(key, a, b string) float64
}

// defaultComparators is the priority-ordered strategy list: exact hard
// identifiers first, Levenshtein for everything else.
var defaultComparators = []Comparator{
	exactComparator{},
	levenshteinComparator{},
}

// IsHardIdentifier reports whether key proves identity on exact match.
func IsHardIdentifier(key string) bool {
	return hardIdentifierKeys[strings.ToLower(strings.TrimSpace(key))]
}

// NormalizeIdentifier canonicalises a hard identifier value: whitespace and
// hyphens stripped, lower-cased, known URI prefixes removed.
func NormalizeIdentifier(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.ReplaceAll(v, " ", "")
	v = strings.ReplaceAll(v, "-", "")
	for _, prefix := range uriPrefixes {
		if strings.HasPrefix(v, prefix) {
			v = strings.TrimPrefix(v, prefix)
			break
		}
	}
	return v
}

// exactComparator handles hard identifiers: 1.0 on normalised equality,
// 0.0 otherwise.
type exactComparator struct{}

func (exactComparator) AppliesTo(key string) bool {
	return IsHardIdentifier(key)
}

func (exactComparator) Compare(_, a, b string) float64 {
	na, nb := NormalizeIdentifier(a), NormalizeIdentifier(b)
	if na == "" && nb == "" {
		return 1.0
	}
	if na == nb {
		return 1.0
	}
	return 0.0
}

// levenshteinComparator scores any remaining key by normalised edit
// distance: 1 - d/max(len). Both empty compares equal; one empty scores 0.
type levenshteinComparator struct{}

func (levenshteinComparator) AppliesTo(string) bool { return true }

func (levenshteinComparator) Compare(_, a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	switch {
	case a == "" && b == "":
		return 1.0
	case a == "" || b == "":
		return 0.0
	}

	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	d := levenshtein(ra, rb)
	return 1.0 - float64(d)/float64(maxLen)
}

// levenshtein computes edit distance with the two-row dynamic programme.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
