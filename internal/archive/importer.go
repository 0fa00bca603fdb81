package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	serrors "github.com/randalmurphal/sprout/internal/errors"
	"github.com/randalmurphal/sprout/internal/model"
	"github.com/randalmurphal/sprout/internal/photo"
	"github.com/randalmurphal/sprout/internal/progress"
	"github.com/randalmurphal/sprout/internal/storage"
)

// DefaultMaxEntrySize caps any single entry read from an archive.
const DefaultMaxEntrySize = 64 << 20

// ImportResult is the outcome of one import.
type ImportResult struct {
	Success  bool
	Err      error
	Warnings []ImportWarning
	Summary  string
	// Counts holds the rows actually written, per entity.
	Counts model.Counts
}

// Importer restores archives into a storage gateway.
type Importer struct {
	store        storage.Gateway
	photos       photo.Store
	fs           afero.Fs
	logger       *slog.Logger
	maxEntrySize int64
	progressOpts progress.CoalesceOptions
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithImportFs sets the filesystem archives are read from.
func WithImportFs(fs afero.Fs) ImporterOption {
	return func(i *Importer) { i.fs = fs }
}

// WithImportLogger sets the logger.
func WithImportLogger(l *slog.Logger) ImporterOption {
	return func(i *Importer) { i.logger = l }
}

// WithMaxEntrySize caps the size of any one archive entry.
func WithMaxEntrySize(n int64) ImporterOption {
	return func(i *Importer) { i.maxEntrySize = n }
}

// WithImportProgress tunes progress coalescing.
func WithImportProgress(opts progress.CoalesceOptions) ImporterOption {
	return func(i *Importer) { i.progressOpts = opts }
}

// NewImporter creates an importer writing to store and photos.
func NewImporter(store storage.Gateway, photos photo.Store, opts ...ImporterOption) *Importer {
	i := &Importer{
		store:        store,
		photos:       photos,
		fs:           afero.NewOsFs(),
		logger:       slog.Default(),
		maxEntrySize: DefaultMaxEntrySize,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// openedArchive is a zip archive read from the importer's filesystem.
type openedArchive struct {
	file        afero.File
	zr          *zip.Reader
	dataEntry   *zip.File
	attachments map[string]*zip.File
}

func (a *openedArchive) Close() error {
	return a.file.Close()
}

// openArchive opens src and locates its data file.
func openArchive(fs afero.Fs, src string) (*openedArchive, error) {
	f, err := fs.Open(src)
	if err != nil {
		return nil, serrors.ErrArchiveUnreadable(src, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, serrors.ErrArchiveUnreadable(src, err)
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, serrors.ErrArchiveUnreadable(src, err)
	}

	a := &openedArchive{file: f, zr: zr, attachments: make(map[string]*zip.File)}
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		switch entry.Name {
		case DataFileCSV, DataFileJSON:
			if a.dataEntry == nil {
				a.dataEntry = entry
			}
		default:
			// Attachments sit at the archive root; anything nested is ignored.
			if !strings.Contains(entry.Name, "/") {
				a.attachments[entry.Name] = entry
			}
		}
	}
	if a.dataEntry == nil {
		_ = f.Close()
		return nil, serrors.ErrMissingDataFile(src)
	}
	return a, nil
}

// readEntry reads a whole entry, refusing entries larger than limit.
func readEntry(f *zip.File, limit int64) ([]byte, error) {
	if int64(f.UncompressedSize64) > limit {
		return nil, fmt.Errorf("entry %s is %s, limit %s", f.Name,
			humanize.IBytes(f.UncompressedSize64), humanize.IBytes(uint64(limit)))
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(&limitedReader{r: rc, n: limit, entry: f.Name})
}

// loadDocument opens src and decodes its data file. The version gate runs
// here, before the destination is touched.
func loadDocument(fs afero.Fs, src string, limit int64) (*openedArchive, *Document, error) {
	a, err := openArchive(fs, src)
	if err != nil {
		return nil, nil, err
	}
	data, err := readEntry(a.dataEntry, limit)
	if err != nil {
		_ = a.Close()
		return nil, nil, serrors.ErrArchiveUnreadable(path.Join(src, a.dataEntry.Name), err)
	}
	doc, err := decodeDocument(a.dataEntry.Name, data)
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}
	return a, doc, nil
}

// Import restores src into the destination. Structural problems are reported
// in the result's Err and leave the destination as it was; row problems are
// reported as warnings.
func (i *Importer) Import(ctx context.Context, src string, mode Mode, reporter progress.Reporter) ImportResult {
	a, doc, err := loadDocument(i.fs, src, i.maxEntrySize)
	if err != nil {
		i.logger.Warn("import rejected", "source", src, "error", err)
		return failedResult(err)
	}
	defer func() { _ = a.Close() }()

	for _, name := range doc.Unknown {
		i.logger.Debug("skipping unknown section", "section", name)
	}

	tracker := progress.Chain(doc.RowCount(), reporter, i.progressOpts)
	tracker.Set(0)

	var sc *SectionContext
	var oldPhotos []string
	err = i.store.WithTx(ctx, func(tx storage.Store) error {
		sc = newSectionContext(mode, doc.Version, tx, i.photos, a.attachments, i.maxEntrySize, i.logger)
		if mode == ModeReplace {
			refs, err := managedPhotoRefs(ctx, tx, i.photos)
			if err != nil {
				return err
			}
			oldPhotos = refs
			if err := tx.ClearAll(ctx); err != nil {
				return storageFailed("clear destination", err)
			}
		}
		return runSections(ctx, sc, doc, tracker)
	})
	if err != nil {
		if sc != nil {
			sc.cleanupPhotos(context.WithoutCancel(ctx))
		}
		if serrors.AsSproutError(err) == nil {
			err = serrors.ErrStorageFailed("import", err)
		}
		i.logger.Error("import failed", "source", src, "mode", mode, "error", err)
		return failedResult(err)
	}

	// The wiped rows are gone; their photos go too.
	for _, ref := range oldPhotos {
		if err := i.photos.Delete(context.WithoutCancel(ctx), ref); err != nil {
			i.logger.Warn("delete replaced photo", "ref", ref, "error", err)
		}
	}

	tracker.Done()
	res := ImportResult{
		Success:  true,
		Warnings: sc.warnings,
		Counts:   sc.counts,
	}
	res.Summary = importSummary(res.Counts, len(res.Warnings))
	i.logger.Info("import complete", "source", src, "mode", mode,
		"rows", res.Counts.Total(), "warnings", len(res.Warnings))
	return res
}

// runSections parses every known section in dependency order.
func runSections(ctx context.Context, sc *SectionContext, doc *Document, tracker *progress.Tracker) error {
	for _, name := range importOrder {
		if t, ok := doc.Sections[name]; ok {
			parser := sectionParsers[name]
			sc.section = name
			for idx, row := range t.Rows {
				sc.row = idx + 1
				if reason, bad := t.Malformed[idx]; bad {
					sc.Warn(parser.Category(), reason)
					tracker.Advance(1)
					continue
				}
				if err := parser.Parse(ctx, sc, row); err != nil {
					var re *RowError
					if !errors.As(err, &re) {
						return err
					}
					sc.Warn(parser.Category(), re.Reason)
				}
				tracker.Advance(1)
			}
		}
		if name == SectionLedProfiles {
			if err := linkPlantLeds(ctx, sc); err != nil {
				return err
			}
		}
	}
	return nil
}

// managedPhotoRefs lists the photos the destination references that the
// photo store owns.
func managedPhotoRefs(ctx context.Context, s storage.Store, photos photo.Store) ([]string, error) {
	var refs []string
	add := func(ref string) {
		if ref != "" && photos.IsManaged(ref) {
			refs = append(refs, ref)
		}
	}

	plants, err := s.GetAllPlants(ctx)
	if err != nil {
		return nil, storageFailed("list plants", err)
	}
	for _, p := range plants {
		add(p.PhotoRef)
	}
	gallery, err := s.GetAllPlantPhotos(ctx)
	if err != nil {
		return nil, storageFailed("list plant photos", err)
	}
	for _, p := range gallery {
		add(p.PhotoRef)
	}
	diary, err := s.GetAllDiaryEntries(ctx)
	if err != nil {
		return nil, storageFailed("list diary entries", err)
	}
	for _, d := range diary {
		add(d.PhotoRef)
	}
	envs, err := s.GetAllEnvironmentEntries(ctx)
	if err != nil {
		return nil, storageFailed("list environment entries", err)
	}
	for _, e := range envs {
		add(e.PhotoRef)
	}
	return refs, nil
}

func failedResult(err error) ImportResult {
	msg := err.Error()
	if se := serrors.AsSproutError(err); se != nil {
		msg = se.What
	}
	return ImportResult{Err: err, Summary: "Import failed: " + msg}
}

// importSummary renders a one-line description of what was restored.
func importSummary(c model.Counts, warnings int) string {
	parts := []string{
		countPhrase(c.Plants, "plant", "plants"),
		countPhrase(c.Measurements, "measurement", "measurements"),
		countPhrase(c.DiaryEntries, "diary entry", "diary entries"),
		countPhrase(c.EnvironmentEntries, "environment entry", "environment entries"),
		countPhrase(c.Reminders, "reminder", "reminders"),
		countPhrase(c.PlantPhotos, "photo", "photos"),
		countPhrase(c.SpeciesTargets, "species target", "species targets"),
		countPhrase(c.LedProfiles, "LED profile", "LED profiles"),
		countPhrase(c.ReminderSuggestions, "reminder suggestion", "reminder suggestions"),
		countPhrase(c.LedProfileAssociations, "LED assignment", "LED assignments"),
	}
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	summary := "Imported nothing"
	if len(kept) > 0 {
		summary = "Imported " + strings.Join(kept, ", ")
	}
	if warnings > 0 {
		summary += fmt.Sprintf(" (%s skipped or degraded)", countPhrase(warnings, "row", "rows"))
	}
	return summary
}

func countPhrase(n int, singular, plural string) string {
	if n == 0 {
		return ""
	}
	return humanize.Comma(int64(n)) + " " + progress.Pluralize(n, singular, plural)
}
