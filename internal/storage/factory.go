package storage

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/sprout/internal/db/driver"
)

// Options selects the database behind a backend.
type Options struct {
	// DataDir holds sprout.db when Dialect is sqlite and DSN is empty.
	DataDir string
	Dialect string
	DSN     string
}

// NewBackend creates a storage backend from the options.
func NewBackend(opts Options) (*DatabaseBackend, error) {
	name := strings.ToLower(opts.Dialect)
	if name == "" {
		name = string(driver.DialectSQLite)
	}
	dialect, err := driver.ParseDialect(name)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case driver.DialectSQLite:
		if opts.DSN != "" {
			return NewDialectBackend(opts.DSN, dialect)
		}
		if opts.DataDir == "" {
			return nil, fmt.Errorf("sqlite backend needs a data directory or dsn")
		}
		return NewDatabaseBackend(opts.DataDir)
	case driver.DialectPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres backend needs a dsn")
		}
		return NewDialectBackend(opts.DSN, dialect)
	}
	return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
}
