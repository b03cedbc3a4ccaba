// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

// Package hashing computes the streaming content digest that anchors asset
// identity. Files are read in fixed chunks from a shared buffer pool; no
// full-file buffering ever occurs.
package hashing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// chunkSize is the read granularity. 80 KB keeps buffers off the large-object
// paths of most allocators while amortising syscall overhead.
const chunkSize = 80 * 1024

// bufferPool recycles read buffers across hashing calls. Buffers are
// returned on every exit path, including cancellation.
var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, chunkSize)
		return &b
	},
}

// Digest describes one hashed file.
type Digest struct {
	FilePath  string
	Hex       string // lowercase hex of the 256-bit digest
	ByteCount int64
	Elapsed   time.Duration
}

// HashFile streams path through SHA-256 and returns its digest. The context
// is checked between chunks so cancellation aborts mid-stream promptly.
func HashFile(ctx context.Context, path string) (*Digest, error) {
	start := time.Now()

	f, err := os.Open(path) //nolint:gosec // path originates from the watched inbox
	if err != nil {
		return nil, fmt.Errorf("hashing: failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	bufp := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufp)
	buf := *bufp

	h := sha256.New()
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("hashing: aborted for %s: %w", path, err)
		}
		n, err := f.Read(buf)
		if n > 0 {
			total += int64(n)
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("hashing: read failed for %s: %w", path, err)
		}
	}

	return &Digest{
		FilePath:  path,
		Hex:       hex.EncodeToString(h.Sum(nil)),
		ByteCount: total,
		Elapsed:   time.Since(start),
	}, nil
}
