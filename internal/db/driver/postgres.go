package driver

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// PostgresDriver implements the Driver interface for PostgreSQL.
type PostgresDriver struct {
	db *sql.DB
}

// NewPostgres creates a new PostgreSQL driver.
func NewPostgres() *PostgresDriver {
	return &PostgresDriver{}
}

// Open opens a PostgreSQL database connection.
func (d *PostgresDriver) Open(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	d.db = db
	return nil
}

// Close closes the database connection.
func (d *PostgresDriver) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Exec executes a query without returning rows.
func (d *PostgresDriver) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (d *PostgresDriver) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns at most one row.
func (d *PostgresDriver) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (d *PostgresDriver) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	tx, err := d.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}

// Migrate runs all migrations for the given schema type from schema/postgres.
func (d *PostgresDriver) Migrate(ctx context.Context, schemaFS SchemaFS, schemaType string) error {
	return migrate(ctx, d.db, schemaFS, "schema/postgres", schemaType, `
		CREATE TABLE IF NOT EXISTS _migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, "INSERT INTO _migrations (version) VALUES ($1)")
}

// Dialect returns the PostgreSQL dialect identifier.
func (d *PostgresDriver) Dialect() Dialect {
	return DialectPostgres
}

// Placeholder returns the PostgreSQL placeholder ($1, $2, etc.).
func (d *PostgresDriver) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// Rebind rewrites ? placeholders to $1, $2, ... Question marks inside
// single-quoted literals are left alone.
func (d *PostgresDriver) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// SyncSequence moves the table's id sequence past the current maximum id.
func (d *PostgresDriver) SyncSequence(ctx context.Context, q Querier, table string) error {
	query := fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)",
		table, table)
	if _, err := q.Exec(ctx, query); err != nil {
		return fmt.Errorf("sync sequence %s: %w", table, err)
	}
	return nil
}

// DB returns the underlying sql.DB for advanced operations.
func (d *PostgresDriver) DB() *sql.DB {
	return d.db
}
