// Package db provides database persistence for sprout.
//
// A single project database holds the whole plant-care dataset. SQLite is the
// default; PostgreSQL is supported through the same driver abstraction.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/randalmurphal/sprout/internal/db/driver"
)

//go:embed schema/sqlite/*.sql schema/postgres/*.sql
var schemaFS embed.FS

// embedFSAdapter wraps embed.FS to implement driver.SchemaFS.
type embedFSAdapter struct {
	fs embed.FS
}

func (e *embedFSAdapter) ReadDir(name string) ([]driver.DirEntry, error) {
	entries, err := e.fs.ReadDir(name)
	if err != nil {
		return nil, err
	}
	result := make([]driver.DirEntry, len(entries))
	for i, entry := range entries {
		result[i] = dirEntryAdapter{entry}
	}
	return result, nil
}

func (e *embedFSAdapter) ReadFile(name string) ([]byte, error) {
	return e.fs.ReadFile(name)
}

type dirEntryAdapter struct {
	fs.DirEntry
}

func (d dirEntryAdapter) Name() string {
	return d.DirEntry.Name()
}

func (d dirEntryAdapter) IsDir() bool {
	return d.DirEntry.IsDir()
}

// DB wraps a database connection with driver abstraction.
type DB struct {
	driver driver.Driver
	path   string
}

// Open opens a SQLite database at the given path.
// Creates the parent directory if it doesn't exist.
func Open(path string) (*DB, error) {
	return OpenWithDialect(path, driver.DialectSQLite)
}

// OpenInMemory opens an in-memory SQLite database.
// Each call creates a new isolated database.
func OpenInMemory() (*DB, error) {
	drv, err := driver.New(driver.DialectSQLite)
	if err != nil {
		return nil, err
	}

	if err := drv.Open(":memory:"); err != nil {
		return nil, err
	}

	return &DB{driver: drv, path: ":memory:"}, nil
}

// OpenWithDialect opens a database with a specific dialect.
func OpenWithDialect(dsn string, dialect driver.Dialect) (*DB, error) {
	if dialect == driver.DialectSQLite {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	drv, err := driver.New(dialect)
	if err != nil {
		return nil, err
	}

	if err := drv.Open(dsn); err != nil {
		return nil, err
	}

	return &DB{driver: drv, path: dsn}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.driver.Close()
}

// Path returns the database DSN/path.
func (d *DB) Path() string {
	return d.path
}

// DB returns the underlying sql.DB for advanced operations.
func (d *DB) DB() *sql.DB {
	return d.driver.DB()
}

// Driver returns the underlying driver for dialect-specific operations.
func (d *DB) Driver() driver.Driver {
	return d.driver
}

// Dialect returns the database dialect.
func (d *DB) Dialect() driver.Dialect {
	return d.driver.Dialect()
}

// Migrate runs all migrations for the given schema type.
// Schema files are named {type}_NNN.sql under schema/{dialect}/.
func (d *DB) Migrate(schemaType string) error {
	adapter := &embedFSAdapter{fs: schemaFS}
	return d.driver.Migrate(context.Background(), adapter, schemaType)
}

// BeginTx starts a transaction.
func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (driver.Tx, error) {
	return d.driver.BeginTx(ctx, opts)
}
