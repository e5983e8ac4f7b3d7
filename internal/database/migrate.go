package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"github.com/EugeneTurkin/fav-movies/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationURL is the golang-migrate URL for cfg. Migration files hold
// several statements each, so multiStatements is switched on here only.
func migrationURL(cfg config.DBConfig) (string, error) {
	mc, err := mysql.ParseDSN(DSN(cfg))
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	mc.MultiStatements = true
	return "mysql://" + mc.FormatDSN(), nil
}

// NewMigrator returns a migrate instance reading the embedded migrations.
func NewMigrator(cfg config.DBConfig) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	url, err := migrationURL(cfg)
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// RunMigrations applies all pending migrations. Being up to date already
// is not an error.
func RunMigrations(cfg config.DBConfig, log logrus.FieldLogger) error {
	m, err := NewMigrator(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if v, dirty, err := m.Version(); err == nil {
		log.WithFields(logrus.Fields{"version": v, "dirty": dirty}).Info("schema migrated")
	}
	return nil
}
