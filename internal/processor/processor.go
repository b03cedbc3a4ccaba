// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package processor defines the format-handler boundary and the priority
// registry that dispatches files to handlers. Concrete parsers (EPUB,
// video containers, comic archives) plug in behind the Processor
// interface; the kernel only depends on this contract.
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hearthlib/hearth/internal/models"
)

// ExtractedClaim is a single key/value assertion a processor derived
// from a file, with the processor's own confidence in it.
type ExtractedClaim struct {
	Key        string
	Value      string
	Confidence float64
}

// Result is the outcome of running a processor against a file.
type Result struct {
	DetectedType  models.MediaType
	Claims        []ExtractedClaim
	CoverBytes    []byte
	CoverMIME     string
	IsCorrupt     bool
	CorruptReason string
}

// Processor is a stateless format handler. Implementations must not
// modify the file they are given.
type Processor interface {
	// SupportedType reports the media type this handler produces.
	SupportedType() models.MediaType

	// Priority orders handlers during resolution; higher wins.
	Priority() int

	// CanProcess sniffs the file, reading at most SniffLen bytes.
	CanProcess(path string) bool

	// Process extracts claims and an optional cover image.
	Process(ctx context.Context, path string) (*Result, error)
}

// SniffLen is the maximum number of bytes CanProcess may read.
const SniffLen = 16

// FallbackPriority is reserved for the fallback handler. Concrete
// processors must register with a priority above it.
const FallbackPriority = -1 << 31

// Registry resolves files to the highest-priority handler that accepts
// them and bounds concurrent parsing with a semaphore.
type Registry struct {
	mu         sync.RWMutex
	processors []Processor
	fallback   Processor
	sem        *semaphore.Weighted
}

// NewRegistry builds a registry with the given parse concurrency.
// A non-positive value defaults to the host's CPU count.
func NewRegistry(concurrency int) *Registry {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Registry{
		fallback: &fallbackProcessor{},
		sem:      semaphore.NewWeighted(int64(concurrency)),
	}
}

// Register adds a handler. Handlers at FallbackPriority replace the
// built-in fallback; everything else joins the priority scan.
func (r *Registry) Register(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Priority() == FallbackPriority {
		r.fallback = p
		return
	}
	r.processors = append(r.processors, p)
	sort.SliceStable(r.processors, func(i, j int) bool {
		return r.processors[i].Priority() > r.processors[j].Priority()
	})
}

// Resolve scans handlers by descending priority and returns the first
// whose CanProcess accepts the file. When none match it returns the
// fallback without consulting its CanProcess.
func (r *Registry) Resolve(path string) Processor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.processors {
		if p.CanProcess(path) {
			return p
		}
	}
	return r.fallback
}

// Process resolves and invokes a handler for the file under the parse
// semaphore, so at most `concurrency` files are parsed at once.
func (r *Registry) Process(ctx context.Context, path string) (*Result, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring parse slot: %w", err)
	}
	defer r.sem.Release(1)

	p := r.Resolve(path)
	res, err := p.Process(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("processing %s: %w", filepath.Base(path), err)
	}
	return res, nil
}

// fallbackProcessor derives minimal claims from the filename alone. It
// accepts every file and is only reached when no concrete handler
// claims the path.
type fallbackProcessor struct{}

func (*fallbackProcessor) SupportedType() models.MediaType { return models.MediaTypeUnknown }
func (*fallbackProcessor) Priority() int                   { return FallbackPriority }
func (*fallbackProcessor) CanProcess(string) bool          { return true }

func (*fallbackProcessor) Process(_ context.Context, path string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	base := filepath.Base(path)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.TrimSpace(strings.ReplaceAll(title, "_", " "))
	if title == "" {
		title = base
	}

	return &Result{
		DetectedType: models.MediaTypeUnknown,
		Claims: []ExtractedClaim{
			{Key: "title", Value: title, Confidence: 0.2},
		},
	}, nil
}
