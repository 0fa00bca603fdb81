// Package driver provides database driver abstraction for SQLite and PostgreSQL.
package driver

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Dialect represents the database dialect.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Querier is the subset of operations shared by a driver and a transaction.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
}

// Driver abstracts database operations for SQLite and PostgreSQL.
type Driver interface {
	Querier

	// Connection
	Open(dsn string) error
	Close() error

	// Transactions
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)

	// Migrations
	Migrate(ctx context.Context, schemaFS SchemaFS, schemaType string) error

	// Dialect-specific
	Dialect() Dialect
	Placeholder(index int) string // $1 for Postgres, ? for SQLite

	// Rebind rewrites ? placeholders into the dialect's form.
	Rebind(query string) string

	// SyncSequence realigns an id sequence after rows were inserted with
	// explicit ids. No-op where ids are not sequence backed.
	SyncSequence(ctx context.Context, q Querier, table string) error

	// Raw access (for advanced operations)
	DB() *sql.DB
}

// Tx wraps database transactions.
type Tx interface {
	Querier
	Commit() error
	Rollback() error
}

// SchemaFS provides access to embedded schema files.
type SchemaFS interface {
	ReadDir(name string) ([]DirEntry, error)
	ReadFile(name string) ([]byte, error)
}

// DirEntry represents a directory entry.
type DirEntry interface {
	Name() string
	IsDir() bool
}

// New creates a driver based on configuration.
func New(dialect Dialect) (Driver, error) {
	switch dialect {
	case DialectSQLite:
		return NewSQLite(), nil
	case DialectPostgres:
		return NewPostgres(), nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
}

// ParseDialect parses a dialect string.
func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unknown dialect: %s", s)
	}
}

// sqlTx wraps a sql.Tx to implement the Tx interface.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *sqlTx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *sqlTx) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *sqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	return t.tx.Rollback()
}

// migrate applies every {schemaType}_NNN.sql file under dir that is not yet
// recorded in _migrations. insertVersion is the dialect's insert statement.
func migrate(ctx context.Context, db *sql.DB, schemaFS SchemaFS, dir, schemaType, createTable, insertVersion string) error {
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM _migrations")
	if err != nil {
		return fmt.Errorf("query migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate migrations: %w", err)
	}

	entries, err := schemaFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read schema dir %s: %w", dir, err)
	}

	var migrations []string
	prefix := schemaType + "_"
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".sql") {
			migrations = append(migrations, e.Name())
		}
	}
	sort.Strings(migrations)

	for _, name := range migrations {
		version := extractVersion(name, prefix)
		if applied[version] {
			continue
		}

		content, err := schemaFS.ReadFile(dir + "/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx, insertVersion, version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}

	return nil
}

// extractVersion extracts version number from migration filename.
// e.g., "project_001.sql" with prefix "project_" returns 1
func extractVersion(name, prefix string) int {
	s := strings.TrimPrefix(name, prefix)
	s = strings.TrimSuffix(s, ".sql")
	v, _ := strconv.Atoi(s)
	return v
}
