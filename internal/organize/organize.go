// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package organize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/hearthlib/hearth/internal/config"
)

// QuarantineDir holds rejected files under the data root. Files are
// moved here, never deleted.
const QuarantineDir = ".rejected"

// coverBaseName is the cover image written beside organised media; the
// extension follows the image's MIME type.
const coverBaseName = "cover"

// Organizer places ingested files into the templated library layout.
type Organizer struct {
	dataRoot string
	cfg      config.OrganizeConfig
	log      zerolog.Logger
}

// New creates an organiser rooted at dataRoot.
func New(dataRoot string, cfg config.OrganizeConfig, logger zerolog.Logger) *Organizer {
	return &Organizer{dataRoot: dataRoot, cfg: cfg, log: logger}
}

// Place moves srcPath to its templated destination and returns the
// final absolute path. Existing files are never overwritten: the
// destination gains a " (2)", " (3)", ... suffix instead. Transient
// rename failures are retried up to the configured attempt count.
func (o *Organizer) Place(ctx context.Context, srcPath string, f Fields) (string, error) {
	rel := ResolvePath(o.cfg.Template, f)
	if rel == "" {
		return "", fmt.Errorf("template %q resolved to an empty path", o.cfg.Template)
	}
	dest := filepath.Join(o.dataRoot, rel)

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", fmt.Errorf("creating library directory: %w", err)
	}

	final, err := o.moveCollisionFree(ctx, srcPath, dest)
	if err != nil {
		return "", err
	}

	o.log.Info().
		Str("from", srcPath).
		Str("to", final).
		Msg("Organised media file")
	return final, nil
}

// Quarantine moves a rejected file into the quarantine directory under
// the data root, collision-safely. The file is preserved verbatim.
func (o *Organizer) Quarantine(ctx context.Context, srcPath string) (string, error) {
	dir := filepath.Join(o.dataRoot, QuarantineDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating quarantine directory: %w", err)
	}

	dest := filepath.Join(dir, filepath.Base(srcPath))
	final, err := o.moveCollisionFree(ctx, srcPath, dest)
	if err != nil {
		return "", err
	}

	o.log.Warn().
		Str("from", srcPath).
		Str("to", final).
		Msg("Quarantined rejected file")
	return final, nil
}

// WriteCover writes cover bytes beside the organised media file. The
// extension is derived from the MIME type; unknown types default to
// .jpg.
func (o *Organizer) WriteCover(mediaPath string, cover []byte, mime string) (string, error) {
	if len(cover) == 0 {
		return "", nil
	}

	ext := ".jpg"
	if strings.Contains(mime, "png") {
		ext = ".png"
	}
	dest := filepath.Join(filepath.Dir(mediaPath), coverBaseName+ext)
	if err := os.WriteFile(dest, cover, 0o640); err != nil {
		return "", fmt.Errorf("writing cover image: %w", err)
	}
	return dest, nil
}

// moveCollisionFree renames src to dest, suffixing the base name until
// a free slot is found, retrying transient I/O errors.
func (o *Organizer) moveCollisionFree(ctx context.Context, src, dest string) (string, error) {
	final := nextFreePath(dest)

	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond),
		uint64(o.cfg.MaxRenameTry-1))

	op := func() error {
		// Another writer may have taken the slot between the probe and
		// the rename; re-resolve on each attempt.
		final = nextFreePath(dest)
		return moveFile(src, final)
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", fmt.Errorf("renaming after %d attempts: %w", o.cfg.MaxRenameTry, err)
	}
	return final, nil
}

// nextFreePath returns dest if unoccupied, otherwise the first
// "name (N)ext" variant that is.
func nextFreePath(dest string) string {
	if _, err := os.Lstat(dest); errors.Is(err, os.ErrNotExist) {
		return dest
	}

	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}

// moveFile renames src to dest, falling back to copy-and-remove when
// the rename crosses filesystems.
func moveFile(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
