package db

import (
	"os"
	"testing"

	"github.com/randalmurphal/sprout/internal/db/driver"
)

// PostgresDSNEnv names the environment variable that enables PostgreSQL tests.
const PostgresDSNEnv = "SPROUT_TEST_POSTGRES_DSN"

// NewTestProjectDB creates an in-memory project database for testing.
// The database is automatically closed when the test completes.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    t.Parallel()
//	    pdb := db.NewTestProjectDB(t)
//	    // use pdb...
//	}
func NewTestProjectDB(t testing.TB) *ProjectDB {
	t.Helper()

	pdb, err := OpenProjectInMemory()
	if err != nil {
		t.Fatalf("create test project db: %v", err)
	}

	t.Cleanup(func() {
		_ = pdb.Close()
	})

	return pdb
}

// NewTestPostgresProjectDB opens the PostgreSQL database named by
// SPROUT_TEST_POSTGRES_DSN, wiped clean. The test is skipped when the
// variable is unset.
func NewTestPostgresProjectDB(t testing.TB) *ProjectDB {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}

	pdb, err := OpenProjectWithDialect(dsn, driver.DialectPostgres)
	if err != nil {
		t.Fatalf("open postgres project db: %v", err)
	}
	if err := pdb.ClearAll(t.Context()); err != nil {
		_ = pdb.Close()
		t.Fatalf("clear postgres project db: %v", err)
	}

	t.Cleanup(func() {
		_ = pdb.Close()
	})

	return pdb
}
