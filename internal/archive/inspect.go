package archive

import (
	"context"
	"fmt"
	"path"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	serrors "github.com/randalmurphal/sprout/internal/errors"
)

// AttachmentInfo describes one photo entry of an archive.
type AttachmentInfo struct {
	Name string `json:"name" yaml:"name"`
	Size uint64 `json:"size" yaml:"size"`
}

// SectionInfo is the row count of one section.
type SectionInfo struct {
	Name string `json:"name" yaml:"name"`
	Rows int    `json:"rows" yaml:"rows"`
}

// ArchiveInfo summarizes an archive without importing it.
type ArchiveInfo struct {
	Path        string           `json:"path" yaml:"path"`
	Version     int              `json:"version" yaml:"version"`
	Format      Format           `json:"format" yaml:"format"`
	Sections    []SectionInfo    `json:"sections" yaml:"sections"`
	Unknown     []string         `json:"unknown_sections,omitempty" yaml:"unknown_sections,omitempty"`
	Attachments []AttachmentInfo `json:"attachments" yaml:"attachments"`
}

// TotalRows returns the row count across known sections.
func (a *ArchiveInfo) TotalRows() int {
	n := 0
	for _, s := range a.Sections {
		n += s.Rows
	}
	return n
}

// Inspect reads the version, section row counts and attachment entries of
// src. When pattern is non-empty only attachments whose names match the glob
// are listed.
func Inspect(ctx context.Context, fs afero.Fs, src, pattern string) (*ArchiveInfo, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid attachment pattern %q", pattern)
	}
	a, doc, err := loadDocument(fs, src, DefaultMaxEntrySize)
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close() }()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info := &ArchiveInfo{
		Path:    src,
		Version: doc.Version,
		Format:  FormatCSV,
		Unknown: doc.Unknown,
	}
	if a.dataEntry.Name == DataFileJSON {
		info.Format = FormatJSON
	}
	for _, name := range fileOrder {
		if t, ok := doc.Sections[name]; ok {
			info.Sections = append(info.Sections, SectionInfo{Name: name, Rows: len(t.Rows)})
		}
	}

	for name, f := range a.attachments {
		if pattern != "" {
			ok, err := doublestar.Match(pattern, path.Clean(name))
			if err != nil {
				return nil, serrors.ErrArchiveUnreadable(src, err)
			}
			if !ok {
				continue
			}
		}
		info.Attachments = append(info.Attachments, AttachmentInfo{Name: name, Size: f.UncompressedSize64})
	}
	slices.SortFunc(info.Attachments, func(x, y AttachmentInfo) int {
		switch {
		case x.Name < y.Name:
			return -1
		case x.Name > y.Name:
			return 1
		}
		return 0
	})
	return info, nil
}
