package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mbolis/quick-apply/log"
)

//go:embed migrations
var schemaMigrations embed.FS

// newMigrator targets db with the embedded migrations. The migrator must not
// be closed: that would close db as well.
func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(schemaMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("db.migrate.source: %w", err)
	}

	dst, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("db.migrate.driver: %w", err)
	}

	return migrate.NewWithInstance("iofs", src, "sqlite3", dst)
}

// migrateDB brings the schema to the latest version. A database left dirty
// by a failed migration is refused rather than repaired.
func migrateDB(db *sql.DB) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	before, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("db.migrate.version: %w", err)
	}
	if dirty {
		return fmt.Errorf("db.migrate: schema version %d is dirty", before)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debugf("db.migrate: schema up to date (version %d)", before)
			return nil
		}
		return fmt.Errorf("db.migrate.up: %w", err)
	}

	after, _, _ := m.Version()
	log.WithFields(log.Fields{"from": before, "to": after}).Info("db.migrate: schema migrated")
	return nil
}

// SchemaVersion reports the applied migration version of db.
func SchemaVersion(db *sql.DB) (uint, error) {
	m, err := newMigrator(db)
	if err != nil {
		return 0, err
	}
	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("db.migrate.version: %w", err)
	}
	return version, nil
}
