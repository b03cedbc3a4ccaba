// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package processor

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/hearthlib/hearth/internal/models"
)

type stubProcessor struct {
	mediaType models.MediaType
	priority  int
	accepts   bool
	sniffed   atomic.Int64
	result    *Result
}

func (s *stubProcessor) SupportedType() models.MediaType { return s.mediaType }
func (s *stubProcessor) Priority() int                   { return s.priority }

func (s *stubProcessor) CanProcess(string) bool {
	s.sniffed.Add(1)
	return s.accepts
}

func (s *stubProcessor) Process(context.Context, string) (*Result, error) {
	if s.result != nil {
		return s.result, nil
	}
	return &Result{DetectedType: s.mediaType}, nil
}

func TestResolvePrefersHigherPriority(t *testing.T) {
	low := &stubProcessor{mediaType: models.MediaTypeEpub, priority: 10, accepts: true}
	high := &stubProcessor{mediaType: models.MediaTypeMovie, priority: 20, accepts: true}

	r := NewRegistry(1)
	r.Register(low)
	r.Register(high)

	got := r.Resolve("anything.bin")
	if got != high {
		t.Errorf("Resolve returned priority %d, want %d", got.Priority(), high.Priority())
	}
	if low.sniffed.Load() != 0 {
		t.Error("lower-priority handler was sniffed after a higher one accepted")
	}
}

func TestResolveFallsBackWithoutSniffingFallback(t *testing.T) {
	declined := &stubProcessor{mediaType: models.MediaTypeEpub, priority: 5}
	fb := &stubProcessor{mediaType: models.MediaTypeUnknown, priority: FallbackPriority, accepts: false}

	r := NewRegistry(1)
	r.Register(declined)
	r.Register(fb)

	if got := r.Resolve("mystery.dat"); got != fb {
		t.Fatal("Resolve did not return the fallback when nothing matched")
	}
	if fb.sniffed.Load() != 0 {
		t.Error("fallback CanProcess was invoked during resolution")
	}
}

func TestFallbackDerivesTitleFromFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "The_Left_Hand_of_Darkness.epub")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	res, err := NewRegistry(1).Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Claims) != 1 || res.Claims[0].Key != "title" {
		t.Fatalf("claims = %+v, want a single title claim", res.Claims)
	}
	if got := res.Claims[0].Value; got != "The Left Hand of Darkness" {
		t.Errorf("title = %q", got)
	}
}

func TestProcessPropagatesCorruptResult(t *testing.T) {
	corrupt := &stubProcessor{
		mediaType: models.MediaTypeEpub,
		priority:  1,
		accepts:   true,
		result:    &Result{IsCorrupt: true, CorruptReason: "truncated container"},
	}

	r := NewRegistry(2)
	r.Register(corrupt)

	res, err := r.Process(context.Background(), "book.epub")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !res.IsCorrupt || res.CorruptReason == "" {
		t.Errorf("corrupt result not propagated: %+v", res)
	}
}

func TestProcessHonoursCancelledContext(t *testing.T) {
	r := NewRegistry(1)
	ctx, cancel := context.WithCancel(context.Background())

	// Hold the only parse slot so Acquire blocks.
	if err := r.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer r.sem.Release(1)

	cancel()
	if _, err := r.Process(ctx, "held.bin"); err == nil {
		t.Fatal("Process must fail when the context is cancelled while waiting")
	}
}
