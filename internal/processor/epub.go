// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package processor

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hearthlib/hearth/internal/models"
)

// zipMagic is the local-file-header signature every EPUB starts with.
var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// maxCoverBytes caps the cover image read out of the archive.
const maxCoverBytes = 5 << 20

// epubContainerPath locates the OPF pointer inside the archive.
const epubContainerPath = "META-INF/container.xml"

// epubProcessor extracts Dublin Core metadata and the cover image from
// the EPUB package document (OPF). Archives that cannot be opened or
// lack the OCF container structure are reported corrupt rather than
// failed, so the orchestrator quarantines them.
type epubProcessor struct{}

// NewEpub returns the EPUB format handler.
func NewEpub() Processor { return &epubProcessor{} }

func (*epubProcessor) SupportedType() models.MediaType { return models.MediaTypeEpub }
func (*epubProcessor) Priority() int                   { return 100 }

// CanProcess accepts files with the .epub extension that start with the
// zip local-file-header magic.
func (*epubProcessor) CanProcess(filePath string) bool {
	if !strings.EqualFold(filepath.Ext(filePath), ".epub") {
		return false
	}
	f, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return string(head) == string(zipMagic)
}

func (p *epubProcessor) Process(_ context.Context, filePath string) (*Result, error) {
	archive, err := zip.OpenReader(filePath)
	if err != nil {
		return &Result{
			DetectedType:  models.MediaTypeEpub,
			IsCorrupt:     true,
			CorruptReason: fmt.Sprintf("unreadable epub archive: %v", err),
		}, nil
	}
	defer archive.Close()

	opfPath, err := findPackagePath(&archive.Reader)
	if err != nil {
		return &Result{
			DetectedType:  models.MediaTypeEpub,
			IsCorrupt:     true,
			CorruptReason: err.Error(),
		}, nil
	}

	pkg, err := readPackage(&archive.Reader, opfPath)
	if err != nil {
		return &Result{
			DetectedType:  models.MediaTypeEpub,
			IsCorrupt:     true,
			CorruptReason: err.Error(),
		}, nil
	}

	res := &Result{
		DetectedType: models.MediaTypeEpub,
		Claims:       claimsFromPackage(pkg),
	}
	if item := pkg.coverItem(); item != nil {
		cover, err := readArchiveFile(&archive.Reader, path.Join(path.Dir(opfPath), item.Href), maxCoverBytes)
		if err == nil {
			res.CoverBytes = cover
			res.CoverMIME = item.MediaType
		}
	}
	return res, nil
}

// opfPackage is the subset of the EPUB package document Hearth reads.
// Field tags match local names so any namespace prefix parses.
type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest struct {
		Items []opfItem `xml:"item"`
	} `xml:"manifest"`
}

type opfMetadata struct {
	Titles      []string        `xml:"title"`
	Creators    []string        `xml:"creator"`
	Language    string          `xml:"language"`
	Publisher   string          `xml:"publisher"`
	Date        string          `xml:"date"`
	Identifiers []opfIdentifier `xml:"identifier"`
	Metas       []opfMeta       `xml:"meta"`
}

type opfIdentifier struct {
	Scheme string `xml:"scheme,attr"`
	Value  string `xml:",chardata"`
}

type opfMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// coverItem resolves the cover manifest entry: the EPUB 3
// properties="cover-image" marker wins, else the EPUB 2
// <meta name="cover"> id reference.
func (p *opfPackage) coverItem() *opfItem {
	for i := range p.Manifest.Items {
		if strings.Contains(p.Manifest.Items[i].Properties, "cover-image") {
			return &p.Manifest.Items[i]
		}
	}
	for _, m := range p.Metadata.Metas {
		if !strings.EqualFold(m.Name, "cover") || m.Content == "" {
			continue
		}
		for i := range p.Manifest.Items {
			if p.Manifest.Items[i].ID == m.Content {
				return &p.Manifest.Items[i]
			}
		}
	}
	return nil
}

// claimsFromPackage maps Dublin Core elements to claim keys. The OPF is
// authoritative for its own book, so confidences sit above the
// auto-link threshold; identifiers are certain.
func claimsFromPackage(pkg *opfPackage) []ExtractedClaim {
	var claims []ExtractedClaim
	add := func(key, value string, confidence float64) {
		value = strings.TrimSpace(value)
		if value != "" {
			claims = append(claims, ExtractedClaim{Key: key, Value: value, Confidence: confidence})
		}
	}

	if len(pkg.Metadata.Titles) > 0 {
		add("title", pkg.Metadata.Titles[0], 0.9)
	}
	if len(pkg.Metadata.Creators) > 0 {
		add("author", pkg.Metadata.Creators[0], 0.9)
	}
	add("language", pkg.Metadata.Language, 0.8)
	add("publisher", pkg.Metadata.Publisher, 0.7)
	if year := yearOf(pkg.Metadata.Date); year != "" {
		add("year", year, 0.8)
	}
	for _, id := range pkg.Metadata.Identifiers {
		if isbn, ok := isbnOf(id); ok {
			add("isbn", isbn, 1.0)
			break
		}
	}
	return claims
}

// yearOf extracts the leading four-digit year from a dc:date value.
func yearOf(date string) string {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return ""
	}
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return date[:4]
}

// isbnOf recognises an identifier as an ISBN via the opf:scheme
// attribute or a urn:isbn prefix.
func isbnOf(id opfIdentifier) (string, bool) {
	value := strings.TrimSpace(id.Value)
	if strings.EqualFold(id.Scheme, "isbn") {
		return value, value != ""
	}
	lower := strings.ToLower(value)
	if strings.HasPrefix(lower, "urn:isbn:") {
		isbn := strings.TrimSpace(value[len("urn:isbn:"):])
		return isbn, isbn != ""
	}
	return "", false
}

// findPackagePath reads the OCF container and returns the OPF rootfile
// path.
func findPackagePath(archive *zip.Reader) (string, error) {
	raw, err := readArchiveFile(archive, epubContainerPath, 1<<20)
	if err != nil {
		return "", fmt.Errorf("missing OCF container: %w", err)
	}

	var container struct {
		Rootfiles []struct {
			FullPath string `xml:"full-path,attr"`
		} `xml:"rootfiles>rootfile"`
	}
	if err := xml.Unmarshal(raw, &container); err != nil {
		return "", fmt.Errorf("malformed OCF container: %w", err)
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("OCF container names no rootfile")
	}
	return container.Rootfiles[0].FullPath, nil
}

func readPackage(archive *zip.Reader, opfPath string) (*opfPackage, error) {
	raw, err := readArchiveFile(archive, opfPath, 1<<20)
	if err != nil {
		return nil, fmt.Errorf("missing package document %s: %w", opfPath, err)
	}
	pkg := &opfPackage{}
	if err := xml.Unmarshal(raw, pkg); err != nil {
		return nil, fmt.Errorf("malformed package document %s: %w", opfPath, err)
	}
	return pkg, nil
}

func readArchiveFile(archive *zip.Reader, name string, limit int64) ([]byte, error) {
	f, err := archive.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}
