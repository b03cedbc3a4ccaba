// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package organize

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"
)

// SidecarSuffix is appended to the organised media file's full name to
// form its sidecar path.
const SidecarSuffix = ".hearth.xml"

// SidecarCanonical is one canonical key/value pair inside a sidecar.
type SidecarCanonical struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// Sidecar is the per-asset XML descriptor written beside organised
// media. It carries enough to rebuild Hub identity, the ownership
// chain and all canonical values during disaster recovery.
type Sidecar struct {
	XMLName xml.Name `xml:"hearth-asset"`

	AssetID     string `xml:"asset-id"`
	EditionID   string `xml:"edition-id"`
	WorkID      string `xml:"work-id"`
	HubID       string `xml:"hub-id"`
	HubName     string `xml:"hub-name"`
	MediaType   string `xml:"media-type"`
	FormatLabel string `xml:"format-label,omitempty"`

	SequenceIndex *float64 `xml:"sequence-index,omitempty"`
	ContentHash   string   `xml:"content-hash"`

	Canonical []SidecarCanonical `xml:"canonical-values>value"`
	WrittenAt time.Time          `xml:"written-at"`
}

// SidecarPath returns the sidecar location for an organised media file.
func SidecarPath(mediaPath string) string {
	return mediaPath + SidecarSuffix
}

// WriteSidecar writes the descriptor atomically next to the media file.
func WriteSidecar(mediaPath string, sc *Sidecar) error {
	if sc.WrittenAt.IsZero() {
		sc.WrittenAt = time.Now().UTC()
	}

	data, err := xml.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sidecar: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')

	dest := SidecarPath(mediaPath)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("writing sidecar: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("committing sidecar: %w", err)
	}
	return nil
}

// ReadSidecar parses a sidecar document from disk.
func ReadSidecar(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sidecar: %w", err)
	}
	var sc Sidecar
	if err := xml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing sidecar %s: %w", path, err)
	}
	return &sc, nil
}
