package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	serrors "github.com/randalmurphal/sprout/internal/errors"
	"github.com/randalmurphal/sprout/internal/model"
	"github.com/randalmurphal/sprout/internal/photo"
	"github.com/randalmurphal/sprout/internal/progress"
	"github.com/randalmurphal/sprout/internal/storage"
)

// Export phases reported through progress.
const (
	phasePrepare = iota + 1
	phaseSerialize
	phasePackage
	exportPhases = phasePackage
)

// ExportSummary describes a finished export.
type ExportSummary struct {
	Destination     string       `json:"destination"`
	Format          Format       `json:"format"`
	Scope           string       `json:"scope"`
	Counts          model.Counts `json:"counts"`
	Attachments     int          `json:"attachments"`
	AttachmentBytes int64        `json:"attachment_bytes"`
	// MissingPhotos counts photo references that could not be read.
	MissingPhotos int           `json:"missing_photos"`
	ArchiveBytes  int64         `json:"archive_bytes"`
	Duration      time.Duration `json:"duration"`
}

func (s *ExportSummary) String() string {
	msg := fmt.Sprintf("Exported %s to %s (%s, %s in %s)",
		countPhrase(s.Counts.Total(), "row", "rows"), s.Destination,
		countPhrase(s.Attachments, "photo", "photos"),
		humanize.IBytes(uint64(s.AttachmentBytes)), humanize.IBytes(uint64(s.ArchiveBytes)))
	if s.Counts.Total() == 0 {
		msg = fmt.Sprintf("Exported an empty dataset to %s", s.Destination)
	}
	if s.MissingPhotos > 0 {
		msg += fmt.Sprintf("; %s unreadable", countPhrase(s.MissingPhotos, "photo was", "photos were"))
	}
	return msg
}

// Exporter writes archives from a storage gateway.
type Exporter struct {
	store    storage.Gateway
	photos   photo.Store
	fs       afero.Fs
	tempRoot string
	logger   *slog.Logger
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithExportFs sets the filesystem the temp dir and destination live on.
func WithExportFs(fs afero.Fs) ExporterOption {
	return func(e *Exporter) { e.fs = fs }
}

// WithTempRoot sets the parent of the private working directory. Empty means
// the system temp dir.
func WithTempRoot(dir string) ExporterOption {
	return func(e *Exporter) { e.tempRoot = dir }
}

// WithExportLogger sets the logger.
func WithExportLogger(l *slog.Logger) ExporterOption {
	return func(e *Exporter) { e.logger = l }
}

// NewExporter creates an exporter reading from store and photos.
func NewExporter(store storage.Gateway, photos photo.Store, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		store:  store,
		photos: photos,
		fs:     afero.NewOsFs(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// stagedFile is a file written to the working directory, and the name it
// takes inside the archive.
type stagedFile struct {
	entry string
	path  string
}

// Export writes the dataset in scope to dest. A failed export leaves dest
// untouched, and the working directory is always removed.
func (e *Exporter) Export(ctx context.Context, dest string, scope Scope, format Format, reporter progress.Reporter) (*ExportSummary, error) {
	start := time.Now()
	if format == "" {
		format = FormatCSV
	}
	tracker := progress.NewTracker(exportPhases, reporter)
	tracker.Set(0)

	ds, err := e.Snapshot(ctx, scope)
	if err != nil {
		e.logger.Error("export snapshot failed", "scope", scope, "error", err)
		return nil, err
	}
	tracker.Set(phasePrepare)

	work, err := afero.TempDir(e.fs, e.tempRoot, "sprout-export-")
	if err != nil {
		return nil, serrors.ErrExportFailed(dest, fmt.Errorf("create working directory: %w", err))
	}
	defer func() {
		if err := e.fs.RemoveAll(work); err != nil {
			e.logger.Warn("remove export working directory", "dir", work, "error", err)
		}
	}()

	summary := &ExportSummary{Destination: dest, Format: format, Scope: scope.String(), Counts: ds.Counts()}
	staged, err := e.stage(ctx, work, format, ds, summary)
	if err != nil {
		return nil, serrors.ErrExportFailed(dest, err)
	}
	tracker.Set(phaseSerialize)

	n, err := e.pack(dest, staged)
	if err != nil {
		e.logger.Error("export failed", "dest", dest, "error", err)
		return nil, serrors.ErrExportFailed(dest, err)
	}
	summary.ArchiveBytes = n
	summary.Duration = time.Since(start)
	tracker.Done()

	e.logger.Info("export complete",
		"dest", dest,
		"scope", summary.Scope,
		"format", format,
		"rows", summary.Counts.Total(),
		"photos", summary.Attachments,
		"photo_bytes", humanize.IBytes(uint64(summary.AttachmentBytes)),
		"size", humanize.IBytes(uint64(n)),
		"duration", summary.Duration.Round(time.Millisecond))
	return summary, nil
}

// Snapshot reads the dataset in scope inside one transaction so the rows
// are consistent with each other.
func (e *Exporter) Snapshot(ctx context.Context, scope Scope) (*model.Dataset, error) {
	var ds *model.Dataset
	err := e.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		if id, ok := scope.PlantID(); ok {
			ds, err = plantSnapshot(ctx, tx, id)
		} else {
			ds, err = fullSnapshot(ctx, tx)
		}
		return err
	})
	if err != nil {
		if serrors.AsSproutError(err) == nil {
			err = serrors.ErrStorageFailed("export snapshot", err)
		}
		return nil, err
	}
	return ds, nil
}

func fullSnapshot(ctx context.Context, s storage.Store) (*model.Dataset, error) {
	var ds model.Dataset
	var err error
	if ds.Plants, err = s.GetAllPlants(ctx); err != nil {
		return nil, fmt.Errorf("list plants: %w", err)
	}
	if ds.PlantPhotos, err = s.GetAllPlantPhotos(ctx); err != nil {
		return nil, fmt.Errorf("list plant photos: %w", err)
	}
	if ds.SpeciesTargets, err = s.GetAllSpeciesTargets(ctx); err != nil {
		return nil, fmt.Errorf("list species targets: %w", err)
	}
	if ds.LedProfiles, err = s.GetAllLedProfiles(ctx); err != nil {
		return nil, fmt.Errorf("list LED profiles: %w", err)
	}
	if ds.LedProfileAssociations, err = s.GetAllLedProfileAssociations(ctx); err != nil {
		return nil, fmt.Errorf("list LED profile associations: %w", err)
	}
	if ds.Measurements, err = s.GetAllMeasurements(ctx); err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	if ds.EnvironmentEntries, err = s.GetAllEnvironmentEntries(ctx); err != nil {
		return nil, fmt.Errorf("list environment entries: %w", err)
	}
	if ds.DiaryEntries, err = s.GetAllDiaryEntries(ctx); err != nil {
		return nil, fmt.Errorf("list diary entries: %w", err)
	}
	if ds.Reminders, err = s.GetAllReminders(ctx); err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	if ds.ReminderSuggestions, err = s.GetAllReminderSuggestions(ctx); err != nil {
		return nil, fmt.Errorf("list reminder suggestions: %w", err)
	}
	return &ds, nil
}

// plantSnapshot reads one plant's subtree: its child rows, the LED profiles
// it references directly or through associations, and the species target
// matching its species.
func plantSnapshot(ctx context.Context, s storage.Store, id int64) (*model.Dataset, error) {
	p, err := s.GetPlant(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, serrors.ErrPlantNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get plant %d: %w", id, err)
	}

	ds := model.Dataset{Plants: []*model.Plant{p}}
	if ds.PlantPhotos, err = s.GetPlantPhotosForPlant(ctx, id); err != nil {
		return nil, fmt.Errorf("list plant photos: %w", err)
	}
	if ds.LedProfileAssociations, err = s.GetLedProfileAssociationsForPlant(ctx, id); err != nil {
		return nil, fmt.Errorf("list LED profile associations: %w", err)
	}
	if ds.Measurements, err = s.GetMeasurementsForPlant(ctx, id); err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	if ds.EnvironmentEntries, err = s.GetEnvironmentEntriesForPlant(ctx, id); err != nil {
		return nil, fmt.Errorf("list environment entries: %w", err)
	}
	if ds.DiaryEntries, err = s.GetDiaryEntriesForPlant(ctx, id); err != nil {
		return nil, fmt.Errorf("list diary entries: %w", err)
	}
	if ds.Reminders, err = s.GetRemindersForPlant(ctx, id); err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	if ds.ReminderSuggestions, err = s.GetReminderSuggestionsForPlant(ctx, id); err != nil {
		return nil, fmt.Errorf("list reminder suggestions: %w", err)
	}

	seen := make(map[int64]bool)
	addLed := func(ledID int64) error {
		if seen[ledID] {
			return nil
		}
		seen[ledID] = true
		l, err := s.GetLedProfile(ctx, ledID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get LED profile %d: %w", ledID, err)
		}
		ds.LedProfiles = append(ds.LedProfiles, l)
		return nil
	}
	if p.LedProfileID != nil {
		if err := addLed(*p.LedProfileID); err != nil {
			return nil, err
		}
	}
	for _, a := range ds.LedProfileAssociations {
		if err := addLed(a.LedProfileID); err != nil {
			return nil, err
		}
	}

	if p.Species != "" {
		st, err := s.GetSpeciesTarget(ctx, p.Species)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("get species target %q: %w", p.Species, err)
		default:
			ds.SpeciesTargets = []*model.SpeciesTarget{st}
		}
	}
	return &ds, nil
}

// stage copies photos out and writes the data file into dir. The data file
// is always the first staged file.
func (e *Exporter) stage(ctx context.Context, dir string, format Format, ds *model.Dataset, summary *ExportSummary) ([]stagedFile, error) {
	var attachments []stagedFile
	copyOut := func(prefix string, id int64, ref string) string {
		if ref == "" {
			return ""
		}
		entry := attachmentName(prefix, id, ref)
		n, err := e.copyPhoto(ctx, ref, filepath.Join(dir, entry))
		if err != nil {
			e.logger.Warn("photo unreadable, exporting without it", "ref", ref, "entity", prefix, "id", id, "error", err)
			summary.MissingPhotos++
			return ""
		}
		attachments = append(attachments, stagedFile{entry: entry, path: filepath.Join(dir, entry)})
		summary.Attachments++
		summary.AttachmentBytes += n
		return entry
	}

	doc := newDocument(CurrentVersion)
	leds := &Table{Name: SectionLedProfiles, Columns: ledProfileColumns}
	for _, l := range ds.LedProfiles {
		row, err := encodeLedProfile(l)
		if err != nil {
			return nil, fmt.Errorf("LED profile %d: %w", l.ID, err)
		}
		leds.Rows = append(leds.Rows, row)
	}
	plants := &Table{Name: SectionPlants, Columns: plantColumns}
	for _, p := range ds.Plants {
		plants.Rows = append(plants.Rows, encodePlant(p, copyOut(prefixPlant, p.ID, p.PhotoRef)))
	}
	gallery := &Table{Name: SectionPlantPhotos, Columns: plantPhotoColumns}
	for _, p := range ds.PlantPhotos {
		gallery.Rows = append(gallery.Rows, encodePlantPhoto(p, copyOut(prefixPlantPhoto, p.ID, p.PhotoRef)))
	}
	species := &Table{Name: SectionSpeciesTargets, Columns: speciesColumns}
	for _, s := range ds.SpeciesTargets {
		row, err := encodeSpeciesTarget(s)
		if err != nil {
			return nil, fmt.Errorf("species target %q: %w", s.SpeciesKey, err)
		}
		species.Rows = append(species.Rows, row)
	}
	measurements := &Table{Name: SectionMeasurements, Columns: measurementColumns}
	for _, m := range ds.Measurements {
		measurements.Rows = append(measurements.Rows, encodeMeasurement(m))
	}
	envs := &Table{Name: SectionEnvironmentEntries, Columns: environmentColumns}
	for _, en := range ds.EnvironmentEntries {
		envs.Rows = append(envs.Rows, encodeEnvironmentEntry(en, copyOut(prefixEnvironment, en.ID, en.PhotoRef)))
	}
	diary := &Table{Name: SectionDiaryEntries, Columns: diaryColumns}
	for _, d := range ds.DiaryEntries {
		diary.Rows = append(diary.Rows, encodeDiaryEntry(d, copyOut(prefixDiary, d.ID, d.PhotoRef)))
	}
	reminders := &Table{Name: SectionReminders, Columns: reminderColumns}
	for _, r := range ds.Reminders {
		reminders.Rows = append(reminders.Rows, encodeReminder(r))
	}
	suggestions := &Table{Name: SectionReminderSuggestions, Columns: suggestionColumns}
	for _, s := range ds.ReminderSuggestions {
		suggestions.Rows = append(suggestions.Rows, encodeReminderSuggestion(s))
	}
	assocs := &Table{Name: SectionLedProfileAssociations, Columns: associationColumns}
	for _, a := range ds.LedProfileAssociations {
		assocs.Rows = append(assocs.Rows, encodeLedProfileAssociation(a))
	}
	for _, t := range []*Table{leds, plants, gallery, species, measurements, envs, diary, reminders, suggestions, assocs} {
		doc.add(t)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dataPath := filepath.Join(dir, format.DataFile())
	f, err := e.fs.Create(dataPath)
	if err != nil {
		return nil, fmt.Errorf("create data file: %w", err)
	}
	if err := encodeDocument(f, format, doc); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write data file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close data file: %w", err)
	}
	return append([]stagedFile{{entry: format.DataFile(), path: dataPath}}, attachments...), nil
}

// copyPhoto copies the photo behind ref to path and returns its size.
func (e *Exporter) copyPhoto(ctx context.Context, ref, path string) (int64, error) {
	rc, err := e.photos.Open(ctx, ref)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	out, err := e.fs.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = e.fs.Remove(path)
		return 0, err
	}
	return n, nil
}

// pack zips the staged files into a temporary file beside dest and renames
// it into place, so dest is either the previous file or the whole archive.
// Returns the archive size.
func (e *Exporter) pack(dest string, files []stagedFile) (int64, error) {
	dir := filepath.Dir(dest)
	if err := e.fs.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create destination directory: %w", err)
	}
	out, err := afero.TempFile(e.fs, dir, ".sprout-export-*.zip")
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	tmpPath := out.Name()
	done := false
	defer func() {
		if !done {
			if err := e.fs.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				e.logger.Warn("remove partial archive", "path", tmpPath, "error", err)
			}
		}
	}()

	zw := zip.NewWriter(out)
	now := time.Now()
	for _, sf := range files {
		if err := addZipEntry(e.fs, zw, sf, now); err != nil {
			_ = zw.Close()
			_ = out.Close()
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		return 0, fmt.Errorf("finish archive: %w", err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return 0, fmt.Errorf("sync archive: %w", err)
	}
	info, statErr := out.Stat()
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}
	if err := e.fs.Rename(tmpPath, dest); err != nil {
		return 0, fmt.Errorf("move archive into place: %w", err)
	}
	done = true
	if statErr != nil {
		return 0, nil
	}
	return info.Size(), nil
}

func addZipEntry(fs afero.Fs, zw *zip.Writer, sf stagedFile, modified time.Time) error {
	in, err := fs.Open(sf.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", sf.entry, err)
	}
	defer func() { _ = in.Close() }()

	// Photos are already compressed; only the data file is deflated.
	method := zip.Store
	if sf.entry == DataFileCSV || sf.entry == DataFileJSON {
		method = zip.Deflate
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: sf.entry, Method: method, Modified: modified})
	if err != nil {
		return fmt.Errorf("add %s: %w", sf.entry, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write %s: %w", sf.entry, err)
	}
	return nil
}
