// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package organize

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/hearthlib/hearth/internal/config"
)

func TestResolvePathFullFields(t *testing.T) {
	got := ResolvePath(config.DefaultTemplate, Fields{
		Category: "Epub",
		HubName:  "Dune",
		Year:     "1965",
		Format:   "Epub",
		Edition:  "First Edition",
		Ext:      ".epub",
	})
	want := filepath.Join("Epub", "Dune (1965)", "Epub", "Dune (First Edition).epub")
	if got != want {
		t.Errorf("ResolvePath = %q, want %q", got, want)
	}
}

func TestResolvePathCollapsesEmptyOptionals(t *testing.T) {
	got := ResolvePath(config.DefaultTemplate, Fields{
		Category: "Epub",
		HubName:  "Dune",
		Format:   "Epub",
		Ext:      ".epub",
	})
	want := filepath.Join("Epub", "Dune", "Epub", "Dune.epub")
	if got != want {
		t.Errorf("ResolvePath = %q, want %q", got, want)
	}
}

func TestResolvePathSanitisesMetadata(t *testing.T) {
	got := ResolvePath(config.DefaultTemplate, Fields{
		Category: "Movie",
		HubName:  "Alien: Covenant",
		Year:     "2017",
		Format:   "Mkv",
		Edition:  `Director's "Cut"`,
		Ext:      ".mkv",
	})
	for _, r := range got {
		if r == ':' || r == '"' || r == '?' {
			t.Fatalf("unsanitised character %q in %q", r, got)
		}
	}
}

func TestResolvePathEmbeddedSeparatorCannotEscape(t *testing.T) {
	got := ResolvePath(config.DefaultTemplate, Fields{
		Category: "Epub",
		HubName:  "../../etc/passwd",
		Format:   "Epub",
		Ext:      ".epub",
	})
	if filepath.IsAbs(got) {
		t.Fatalf("resolved path is absolute: %q", got)
	}
	for _, seg := range strings.Split(got, string(filepath.Separator)) {
		if seg == ".." {
			t.Fatalf("resolved path contains a traversal segment: %q", got)
		}
	}
}
