package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"

	serrors "github.com/randalmurphal/sprout/internal/errors"
	"github.com/randalmurphal/sprout/internal/model"
	"github.com/randalmurphal/sprout/internal/photo"
	"github.com/randalmurphal/sprout/internal/storage"
)

// ImportWarning is a skipped or degraded row.
type ImportWarning struct {
	Category string `json:"category"`
	Row      int    `json:"row"`
	Reason   string `json:"reason"`
}

func (w ImportWarning) String() string {
	return fmt.Sprintf("%s row %d: %s", w.Category, w.Row, w.Reason)
}

// pendingLed is a plant whose LED profile reference waits for LedProfiles.
type pendingLed struct {
	plant    *model.Plant
	archived int64
	row      int
}

// SectionContext is the state shared by the section parsers of one import.
// It is created per import and passed explicitly to every parser.
type SectionContext struct {
	Mode    Mode
	Version int

	// PlantIDs maps archive plant ids to destination plant ids.
	PlantIDs map[int64]int64
	// LedIDs maps archive LED profile ids to destination LED profile ids.
	LedIDs map[int64]int64

	store       storage.Store
	photos      photo.Store
	attachments map[string]*zip.File
	maxEntry    int64
	logger      *slog.Logger

	section string
	row     int

	seen        map[string]map[int64]bool
	pendingLeds []pendingLed
	saved       []string
	warnings    []ImportWarning
	counts      model.Counts
}

func newSectionContext(mode Mode, version int, store storage.Store, photos photo.Store,
	attachments map[string]*zip.File, maxEntry int64, logger *slog.Logger) *SectionContext {
	return &SectionContext{
		Mode:        mode,
		Version:     version,
		PlantIDs:    make(map[int64]int64),
		LedIDs:      make(map[int64]int64),
		store:       store,
		photos:      photos,
		attachments: attachments,
		maxEntry:    maxEntry,
		logger:      logger,
		seen:        make(map[string]map[int64]bool),
	}
}

// Warn records a warning against the current row.
func (sc *SectionContext) Warn(category, reason string) {
	sc.WarnRow(category, sc.row, reason)
}

// WarnRow records a warning against a specific row.
func (sc *SectionContext) WarnRow(category string, row int, reason string) {
	sc.warnings = append(sc.warnings, ImportWarning{Category: category, Row: row, Reason: reason})
}

// Warnings returns the warnings recorded so far.
func (sc *SectionContext) Warnings() []ImportWarning {
	return sc.warnings
}

// ownID applies the import mode to an entity's own id: REPLACE keeps the
// archive id, MERGE lets the store allocate one.
func (sc *SectionContext) ownID(id int64) int64 {
	if sc.Mode == ModeMerge {
		return 0
	}
	return id
}

// claimID reports whether id is the first occurrence within the current
// section.
func (sc *SectionContext) claimID(id int64) bool {
	ids, ok := sc.seen[sc.section]
	if !ok {
		ids = make(map[int64]bool)
		sc.seen[sc.section] = ids
	}
	if ids[id] {
		return false
	}
	ids[id] = true
	return true
}

// plant resolves an archive plant id.
func (sc *SectionContext) plant(archived int64) (int64, error) {
	id, ok := sc.PlantIDs[archived]
	if !ok {
		return 0, rowErr(reasonUnknownPlantID)
	}
	return id, nil
}

// led resolves an archive LED profile id.
func (sc *SectionContext) led(archived int64) (int64, error) {
	id, ok := sc.LedIDs[archived]
	if !ok {
		return 0, rowErr(reasonUnknownLedID)
	}
	return id, nil
}

// restorePhoto persists the attachment named by entry and returns the new
// photo reference. found is false when the archive has no such entry.
func (sc *SectionContext) restorePhoto(ctx context.Context, entry string) (ref string, found bool, err error) {
	f, ok := sc.attachments[entry]
	if !ok {
		return "", false, nil
	}
	if int64(f.UncompressedSize64) > sc.maxEntry {
		return "", true, serrors.ErrExtractionFailed(entry, fmt.Errorf("entry is %d bytes, limit %d", f.UncompressedSize64, sc.maxEntry))
	}

	rc, err := f.Open()
	if err != nil {
		return "", true, serrors.ErrExtractionFailed(entry, err)
	}
	defer func() { _ = rc.Close() }()

	ref, err = sc.photos.Save(ctx, attachmentOriginalName(entry), &limitedReader{r: rc, n: sc.maxEntry, entry: entry})
	if err != nil {
		return "", true, serrors.ErrExtractionFailed(entry, err)
	}
	sc.saved = append(sc.saved, ref)
	return ref, true, nil
}

// cleanupPhotos deletes every photo saved during this import.
func (sc *SectionContext) cleanupPhotos(ctx context.Context) {
	for _, ref := range sc.saved {
		if err := sc.photos.Delete(ctx, ref); err != nil {
			sc.logger.Warn("delete photo after failed import", "ref", ref, "error", err)
		}
	}
	sc.saved = nil
}

// limitedReader fails, rather than truncating, once more than n bytes are read.
type limitedReader struct {
	r     io.Reader
	n     int64
	entry string
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n < 0 {
		return 0, fmt.Errorf("entry %s exceeds size limit", l.entry)
	}
	if int64(len(p)) > l.n+1 {
		p = p[:l.n+1]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	if l.n < 0 {
		return n, fmt.Errorf("entry %s exceeds size limit", l.entry)
	}
	return n, err
}
