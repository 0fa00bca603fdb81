package driver

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteDriver implements the Driver interface for SQLite.
type SQLiteDriver struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite driver.
func NewSQLite() *SQLiteDriver {
	return &SQLiteDriver{}
}

// Open opens a SQLite database at the given path.
// The pool is limited to one connection: pragmas are per connection and an
// in-memory database only exists on the connection that created it.
func (d *SQLiteDriver) Open(dsn string) error {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		_ = db.Close()
		return fmt.Errorf("set pragmas: %w", err)
	}

	d.db = db
	return nil
}

// Close closes the database connection.
func (d *SQLiteDriver) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Exec executes a query without returning rows.
func (d *SQLiteDriver) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (d *SQLiteDriver) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns at most one row.
func (d *SQLiteDriver) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (d *SQLiteDriver) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	tx, err := d.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}

// Migrate runs all migrations for the given schema type from schema/sqlite.
func (d *SQLiteDriver) Migrate(ctx context.Context, schemaFS SchemaFS, schemaType string) error {
	return migrate(ctx, d.db, schemaFS, "schema/sqlite", schemaType, `
		CREATE TABLE IF NOT EXISTS _migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT DEFAULT (datetime('now'))
		)
	`, "INSERT INTO _migrations (version) VALUES (?)")
}

// Dialect returns the SQLite dialect identifier.
func (d *SQLiteDriver) Dialect() Dialect {
	return DialectSQLite
}

// Placeholder returns the SQLite placeholder (always ?).
func (d *SQLiteDriver) Placeholder(index int) string {
	return "?"
}

// Rebind returns query unchanged.
func (d *SQLiteDriver) Rebind(query string) string {
	return query
}

// SyncSequence is a no-op: INTEGER PRIMARY KEY allocates max(id)+1.
func (d *SQLiteDriver) SyncSequence(ctx context.Context, q Querier, table string) error {
	return nil
}

// DB returns the underlying sql.DB for advanced operations.
func (d *SQLiteDriver) DB() *sql.DB {
	return d.db
}
