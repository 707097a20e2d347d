package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/couchcryptid/wfwx-datamart-etl/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = "wfwx_schema_migrations"

// Migrate applies the embedded schema migrations. An up-to-date schema is not an error.
func (s *Store) Migrate(cfg *config.Config) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	var m *migrate.Migrate
	switch s.db.DriverName() {
	case "postgres":
		// Own connection, closed with m.
		m, err = migrate.NewWithSourceInstance("iofs", src, PostgresURL(cfg)+"&x-migrations-table="+migrationsTable)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer m.Close()
	case "sqlite3":
		// m shares the app pool; closing it would close s.db.
		drv, err := migratesqlite.WithInstance(s.db.DB, &migratesqlite.Config{MigrationsTable: migrationsTable})
		if err != nil {
			return fmt.Errorf("create sqlite migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite3", drv)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
	default:
		return fmt.Errorf("migrations unsupported for driver %q", s.db.DriverName())
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			s.logger.Info("database schema up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	s.logger.Info("database migrations applied", "version", version)
	return nil
}
