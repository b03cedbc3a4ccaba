// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package organize moves ingested files into the templated library
// layout under the data root, writes sidecar descriptors and cover
// images beside them, and can rebuild the whole catalogue from those
// sidecars (the "great inhale").
package organize

import (
	"path/filepath"
	"strings"
)

// Fields are the values substituted into the organiser path template.
// Empty optional fields collapse their surrounding decoration, so
// `{HubName} ({Year})` with no year renders as just the hub name.
type Fields struct {
	Category string // media family, e.g. "Epub"
	HubName  string
	Year     string
	Format   string
	Edition  string
	Ext      string // extension including the leading dot
}

// invalidPathChars appear in metadata but may not appear in path
// segments on at least one supported filesystem.
const invalidPathChars = `<>:"/\|?*`

// ResolvePath renders the template into a relative library path. The
// template uses forward slashes as segment separators regardless of
// platform; the result uses the platform separator.
func ResolvePath(template string, f Fields) string {
	r := strings.NewReplacer(
		"{Category}", sanitizeSegment(f.Category),
		"{HubName}", sanitizeSegment(f.HubName),
		"{Year}", sanitizeSegment(f.Year),
		"{Format}", sanitizeSegment(f.Format),
		"{Edition}", sanitizeSegment(f.Edition),
		"{Ext}", f.Ext,
	)
	rendered := r.Replace(template)

	segments := strings.Split(rendered, "/")
	cleaned := segments[:0]
	for _, seg := range segments {
		seg = collapseEmptyDecorations(seg)
		if seg == "" {
			continue
		}
		cleaned = append(cleaned, seg)
	}
	return filepath.Join(cleaned...)
}

// sanitizeSegment strips characters that cannot appear inside a single
// path segment. Separators embedded in metadata become hyphens.
func sanitizeSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(invalidPathChars, r) {
			b.WriteRune('-')
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// collapseEmptyDecorations removes the "()" and "[]" husks left behind
// when an optional field was empty, then tidies whitespace.
func collapseEmptyDecorations(seg string) string {
	for _, husk := range []string{"()", "[]", "{}"} {
		seg = strings.ReplaceAll(seg, husk, "")
	}
	seg = strings.Join(strings.Fields(seg), " ")
	// A collapsed decoration before the extension leaves "Dune .epub".
	seg = strings.ReplaceAll(seg, " .", ".")
	return strings.TrimSpace(seg)
}
