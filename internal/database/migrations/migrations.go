// Package migrations holds the history database schema and applies it with
// golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var schemaFiles embed.FS

const schemaDir = "files"

// Schema state errors returned by CheckSchema.
var (
	ErrSchemaMissing = errors.New("history database has no schema (run a command that migrates it)")
	ErrSchemaDirty   = errors.New("history database schema is dirty (a migration failed part way)")
	ErrSchemaBehind  = errors.New("history database schema is out of date")
	ErrSchemaAhead   = errors.New("history database was migrated by a newer chatvault")
)

// CheckSchema returns nil when db is at LatestVersion, and one of the
// ErrSchema* errors, wrapped with the versions involved, otherwise.
func CheckSchema(db *sql.DB) error {
	current, dirty, err := Version(db)
	if err != nil {
		return err
	}
	latest, err := LatestVersion()
	if err != nil {
		return err
	}

	switch {
	case dirty:
		return fmt.Errorf("%w: version %d", ErrSchemaDirty, current)
	case current < latest:
		return fmt.Errorf("%w: at version %d, want %d", ErrSchemaBehind, current, latest)
	case current > latest:
		return fmt.Errorf("%w: at version %d, this build knows %d", ErrSchemaAhead, current, latest)
	}
	return nil
}

// Version reports the schema version recorded in db.
func Version(db *sql.DB) (version uint, dirty bool, err error) {
	m, err := open(db)
	if err != nil {
		return 0, false, err
	}
	// m is not closed: that would close db, which the caller owns.

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, ErrSchemaMissing
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading history schema version: %w", err)
	}
	return version, dirty, nil
}

// MigrateUp brings db to LatestVersion. It is a no-op on an up-to-date
// database.
func MigrateUp(db *sql.DB) error {
	m, err := open(db)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrating history database: %w", err)
	}
	return nil
}

// LatestVersion returns the highest migration version embedded in the binary.
func LatestVersion() (uint, error) {
	src, err := iofs.New(schemaFiles, schemaDir)
	if err != nil {
		return 0, fmt.Errorf("reading embedded history schema: %w", err)
	}
	defer src.Close()

	latest, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("history schema has no migrations: %w", err)
	}
	for {
		next, err := src.Next(latest)
		if errors.Is(err, fs.ErrNotExist) {
			return latest, nil
		}
		if err != nil {
			return 0, fmt.Errorf("walking history schema: %w", err)
		}
		latest = next
	}
}

func open(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(schemaFiles, schemaDir)
	if err != nil {
		return nil, fmt.Errorf("reading embedded history schema: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("attaching migrator to history database: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating history migrator: %w", err)
	}
	return m, nil
}
