// Package griddb persists voxelization runs and their grids in SQLite.
// Each run row carries the geometry and occupancy summary; the cell payload
// lives in a separate grid_blobs row so listings never touch the blobs.
// The schema is managed by embedded migrations, see migrate.go.
package griddb

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

type GridDB struct {
	*sql.DB
}

// Open opens the database at path and applies the connection pragmas. It
// does not create or migrate the schema; use OpenAndMigrate for that, or
// drive migrations explicitly through the Migrate* methods.
func Open(path string) (*GridDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	return &GridDB{db}, nil
}

// OpenAndMigrate opens the database and applies all pending migrations.
func OpenAndMigrate(path string) (*GridDB, error) {
	gdb, err := Open(path)
	if err != nil {
		return nil, err
	}

	fsys, err := MigrationsFS()
	if err != nil {
		gdb.Close()
		return nil, err
	}
	if err := gdb.MigrateUp(fsys); err != nil {
		gdb.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return gdb, nil
}

// applyPragmas sets the connection pragmas every open path goes through.
// WAL keeps readers unblocked during writes, the busy timeout covers brief
// writer contention, and foreign keys enforce the runs to grid_blobs link.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}
