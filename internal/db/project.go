package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/randalmurphal/sprout/internal/db/driver"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Ops provides entity operations bound to either the database connection or
// an open transaction. ProjectDB embeds one bound to the connection and
// RunInTx hands out one bound to the transaction.
type Ops struct {
	q   driver.Querier
	drv driver.Driver
}

// ProjectDB provides operations on the project database (.sprout/sprout.db).
type ProjectDB struct {
	*DB
	*Ops
}

// OpenProject opens the project database at {dataDir}/sprout.db using SQLite.
func OpenProject(dataDir string) (*ProjectDB, error) {
	return OpenProjectWithDialect(filepath.Join(dataDir, "sprout.db"), driver.DialectSQLite)
}

// OpenProjectWithDialect opens the project database with a specific dialect.
// For SQLite, dsn is the file path. For PostgreSQL, dsn is the connection string.
func OpenProjectWithDialect(dsn string, dialect driver.Dialect) (*ProjectDB, error) {
	d, err := OpenWithDialect(dsn, dialect)
	if err != nil {
		return nil, err
	}
	return newProjectDB(d)
}

// OpenProjectInMemory opens a migrated in-memory SQLite project database.
func OpenProjectInMemory() (*ProjectDB, error) {
	d, err := OpenInMemory()
	if err != nil {
		return nil, err
	}
	return newProjectDB(d)
}

func newProjectDB(d *DB) (*ProjectDB, error) {
	if err := d.Migrate("project"); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrate project db: %w", err)
	}
	return &ProjectDB{DB: d, Ops: &Ops{q: d.driver, drv: d.driver}}, nil
}

// RunInTx executes the given function within a database transaction.
// If fn returns an error, the transaction is rolled back.
// If fn returns nil, the transaction is committed.
func (p *ProjectDB) RunInTx(ctx context.Context, fn func(tx *Ops) error) error {
	tx, err := p.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&Ops{q: tx, drv: p.driver}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (o *Ops) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return o.q.Exec(ctx, o.drv.Rebind(query), args...)
}

func (o *Ops) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return o.q.Query(ctx, o.drv.Rebind(query), args...)
}

func (o *Ops) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return o.q.QueryRow(ctx, o.drv.Rebind(query), args...)
}

// insertRow inserts one row and returns its id. A zero id lets the database
// allocate one; a non-zero id is written as given.
func (o *Ops) insertRow(ctx context.Context, table string, id int64, cols []string, args []any) (int64, error) {
	if id != 0 {
		cols = append([]string{"id"}, cols...)
		args = append([]any{id}, args...)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table, strings.Join(cols, ", "), placeholders(len(cols)))

	var newID int64
	if err := o.queryRow(ctx, query, args...).Scan(&newID); err != nil {
		return 0, err
	}
	if id != 0 {
		if err := o.drv.SyncSequence(ctx, o.q, table); err != nil {
			return 0, err
		}
	}
	return newID, nil
}

// updateRow sets cols on the row whose key column equals key.
func (o *Ops) updateRow(ctx context.Context, table, keyCol string, key any, cols []string, args []any) error {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", table, strings.Join(sets, ", "), keyCol)
	res, err := o.exec(ctx, query, append(args, key)...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (o *Ops) deleteWhere(ctx context.Context, table, keyCol string, key any) error {
	_, err := o.exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, keyCol), key)
	return err
}

// clearOrder lists tables children first so foreign keys never block a wipe.
var clearOrder = []string{
	"led_profile_associations",
	"reminder_suggestions",
	"reminders",
	"diary_entries",
	"environment_entries",
	"measurements",
	"plant_photos",
	"plants",
	"led_profiles",
	"species_targets",
}

// ClearAll deletes every row of the plant-care dataset.
func (o *Ops) ClearAll(ctx context.Context) error {
	for _, table := range clearOrder {
		if _, err := o.exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
