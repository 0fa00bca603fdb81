package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/randalmurphal/sprout/internal/db"
	"github.com/randalmurphal/sprout/internal/db/driver"
)

// ErrNotFound is returned by single-entity getters when no row matches.
var ErrNotFound = db.ErrNotFound

// DatabaseBackend uses SQLite/PostgreSQL as the sole source of truth.
// Entity operations run on the shared connection; WithTx serializes units of
// work so only one transaction is open at a time.
type DatabaseBackend struct {
	Store

	db     *db.ProjectDB
	txMu   sync.Mutex
	logger *slog.Logger
}

// NewDatabaseBackend opens the SQLite project database under dataDir.
func NewDatabaseBackend(dataDir string) (*DatabaseBackend, error) {
	pdb, err := db.OpenProject(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open project database: %w", err)
	}
	return newDatabaseBackend(pdb), nil
}

// NewDialectBackend opens a project database with an explicit dialect.
// For SQLite, dsn is the file path. For PostgreSQL, dsn is the connection string.
func NewDialectBackend(dsn string, dialect driver.Dialect) (*DatabaseBackend, error) {
	pdb, err := db.OpenProjectWithDialect(dsn, dialect)
	if err != nil {
		return nil, fmt.Errorf("open %s project database: %w", dialect, err)
	}
	return newDatabaseBackend(pdb), nil
}

// NewInMemoryBackend opens a fresh in-memory SQLite backend.
func NewInMemoryBackend() (*DatabaseBackend, error) {
	pdb, err := db.OpenProjectInMemory()
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	return newDatabaseBackend(pdb), nil
}

func newDatabaseBackend(pdb *db.ProjectDB) *DatabaseBackend {
	return &DatabaseBackend{
		Store:  pdb.Ops,
		db:     pdb,
		logger: slog.Default(),
	}
}

// SetLogger sets the logger for warnings and debug messages.
func (d *DatabaseBackend) SetLogger(l *slog.Logger) {
	d.logger = l
}

// DB returns the underlying project database.
func (d *DatabaseBackend) DB() *db.ProjectDB {
	return d.db
}

// WithTx runs fn inside a database transaction.
func (d *DatabaseBackend) WithTx(ctx context.Context, fn func(tx Store) error) error {
	d.txMu.Lock()
	defer d.txMu.Unlock()

	err := d.db.RunInTx(ctx, func(tx *db.Ops) error {
		return fn(tx)
	})
	if err != nil {
		d.logger.Debug("transaction rolled back", "error", err)
	}
	return err
}

// Close releases the database connection.
func (d *DatabaseBackend) Close() error {
	return d.db.Close()
}

var _ Gateway = (*DatabaseBackend)(nil)
