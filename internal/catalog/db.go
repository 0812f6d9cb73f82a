// Package catalog is the durable Catalog Store (C2, §4.4): the
// transactional record of activities, per-platform mappings, per-direction
// sync statuses, cached files, and API counters that the rest of FitSync
// treats as the single source of truth for "has this already happened?".
//
// Grounded on the teacher's internal/store package (db.go/migrations.go
// for the Open/migrate shape). The teacher's store.go and store_custom.go
// call into a generated runner/internal/store/sqlc package that is absent
// from the retrieved teacher tree, so this package is written directly
// against database/sql with raw SQL and prepared statements, the exact
// style store_custom.go already uses for the queries sqlc couldn't
// generate (dynamic IN clauses, explicit transactions).
package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the underlying database handle. All exported methods are
// safe for concurrent use; sqlite itself serializes writers.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the Catalog Store at
// <projectRoot>/sync_database.db (§6 persisted state layout).
func Open(projectRoot string) (*Store, error) {
	if err := os.MkdirAll(projectRoot, 0755); err != nil {
		return nil, fmt.Errorf("creating project directory: %w", err)
	}

	dbPath := filepath.Join(projectRoot, "sync_database.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral in-memory database, used by tests (the
// teacher's personal_records_test.go setupTestDB helper does the same for
// its own schema).
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
