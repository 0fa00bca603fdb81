package cli

import (
	"errors"
	"io"

	"github.com/randalmurphal/sprout/internal/archive"
	"github.com/randalmurphal/sprout/internal/backup"
	"github.com/randalmurphal/sprout/internal/events"
	"github.com/randalmurphal/sprout/internal/lock"
	"github.com/randalmurphal/sprout/internal/photo"
	"github.com/randalmurphal/sprout/internal/storage"
)

// runtime is the wired backup stack for one command invocation.
type runtime struct {
	store    *storage.DatabaseBackend
	photos   *photo.FileStore
	exporter *archive.Exporter
	importer *archive.Importer
	engine   *backup.Engine
	// loop runs engine callbacks on the command goroutine.
	loop      *backup.Loop
	publisher *events.CLIPublisher
	guard     *lock.Guard
}

// openStore opens the configured database.
func (a *app) openStore() (*storage.DatabaseBackend, error) {
	store, err := storage.NewBackend(a.cfg.Config.StorageOptions())
	if err != nil {
		return nil, err
	}
	store.SetLogger(a.logger)
	return store, nil
}

// openRuntime wires storage, photos, the archive codecs and the engine.
func (a *app) openRuntime() (*runtime, error) {
	cfg := a.cfg.Config
	var guard *lock.Guard
	if cfg.DataDir != "" {
		guard = lock.NewGuard(cfg.DataDir)
		if err := guard.Acquire(); err != nil {
			return nil, err
		}
	}
	store, err := a.openStore()
	if err != nil {
		if guard != nil {
			guard.Release()
		}
		return nil, err
	}

	photos := photo.NewOSFileStore(cfg.PhotoDir())
	photos.SetLogger(a.logger)

	expOpts := []archive.ExporterOption{archive.WithExportLogger(a.logger)}
	if cfg.Export.TempDir != "" {
		expOpts = append(expOpts, archive.WithTempRoot(cfg.Export.TempDir))
	}
	exporter := archive.NewExporter(store, photos, expOpts...)
	importer := archive.NewImporter(store, photos,
		archive.WithImportLogger(a.logger),
		archive.WithMaxEntrySize(cfg.Import.MaxEntrySize),
		archive.WithImportProgress(cfg.CoalesceOptions()))

	// Lifecycle events always reach the in-memory publisher; with --verbose
	// they are also streamed to stderr.
	var sink io.Writer = io.Discard
	if a.verbose {
		sink = a.errOut
	}
	pub := events.NewCLIPublisher(sink,
		events.WithInnerPublisher(events.NewMemoryPublisher()),
		events.WithJSONLines(a.jsonOut),
		events.WithWarnings(true))

	loop := backup.NewLoop()
	engine := backup.New(exporter, importer,
		backup.WithDispatcher(loop),
		backup.WithPublisher(pub),
		backup.WithLogger(a.logger))

	return &runtime{
		store:     store,
		photos:    photos,
		exporter:  exporter,
		importer:  importer,
		engine:    engine,
		loop:      loop,
		publisher: pub,
		guard:     guard,
	}, nil
}

// Close stops the engine, runs any callbacks it left behind, and closes
// the store.
func (r *runtime) Close() error {
	err := r.engine.Close()
	r.loop.Drain()
	r.publisher.Close()
	err = errors.Join(err, r.store.Close())
	if r.guard != nil {
		r.guard.Release()
	}
	return err
}
