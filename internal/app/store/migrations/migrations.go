// Package migrations holds the SQL schema, one directory per dialect, and
// applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/refstack/refstack/internal/app/system/dburl"
	"go.uber.org/zap"
)

//go:embed sqlite3/*.sql postgres/*.sql
var files embed.FS

// Up applies all pending migrations for dialect. An up-to-date schema is
// not an error.
func Up(db *sql.DB, dialect dburl.Dialect, logger *zap.Logger) error {
	m, err := newMigrate(db, dialect)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no pending migrations", zap.String("dialect", string(dialect)))
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	v, _, _ := m.Version()
	logger.Info("migrations applied",
		zap.String("dialect", string(dialect)),
		zap.Uint("version", v))
	return nil
}

// Down rolls back steps migrations (at least one).
func Down(db *sql.DB, dialect dburl.Dialect, steps int, logger *zap.Logger) error {
	m, err := newMigrate(db, dialect)
	if err != nil {
		return err
	}
	if steps <= 0 {
		steps = 1
	}

	if err := m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to roll back", zap.String("dialect", string(dialect)))
			return nil
		}
		return fmt.Errorf("roll back migrations: %w", err)
	}

	logger.Info("migrations rolled back",
		zap.String("dialect", string(dialect)),
		zap.Int("steps", steps))
	return nil
}

// Version reports the applied schema version. ok is false on an empty
// database.
func Version(db *sql.DB, dialect dburl.Dialect) (version uint, dirty, ok bool, err error) {
	m, err := newMigrate(db, dialect)
	if err != nil {
		return 0, false, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("read migration version: %w", err)
	}
	return version, dirty, true, nil
}

// newMigrate builds a migrator on the shared connection pool. The returned
// Migrate is never closed: closing it would close db.
func newMigrate(db *sql.DB, dialect dburl.Dialect) (*migrate.Migrate, error) {
	var (
		driver database.Driver
		err    error
	)
	switch dialect {
	case dburl.SQLite:
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case dburl.Postgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		return nil, fmt.Errorf("migrations: %w: %s", dburl.ErrUnsupportedScheme, dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s migration driver: %w", dialect, err)
	}

	src, err := iofs.New(files, string(dialect))
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}
