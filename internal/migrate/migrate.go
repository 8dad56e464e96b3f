// Package migrate manages the ClickHouse schema for snapshot storage.
package migrate

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/clickhouse" // ClickHouse driver.
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/distributoor/internal/export"
)

//go:embed sql/*.sql
var migrations embed.FS

// Migrator manages the snapshot table schema.
type Migrator interface {
	// Up applies all pending migrations.
	Up(ctx context.Context) error
	// Down rolls back the last migration.
	Down(ctx context.Context) error
	// Status returns the current migration version.
	Status(ctx context.Context) (version uint, dirty bool, err error)
}

type migrator struct {
	log logrus.FieldLogger
	cfg export.ClickHouseConfig
}

// New creates a Migrator from the same connection settings the sink uses,
// so migrations and inserts cannot disagree about the target database.
func New(log logrus.FieldLogger, cfg export.ClickHouseConfig) Migrator {
	cfg.ApplyDefaults()

	return &migrator{
		log: log.WithField("component", "migrate"),
		cfg: cfg,
	}
}

// Up applies all pending migrations.
func (m *migrator) Up(ctx context.Context) error {
	mig, err := m.newMigrate()
	if err != nil {
		return err
	}
	defer mig.Close()

	m.log.WithField("database", m.cfg.Database).
		Info("Applying schema migrations...")

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	version, _, _ := mig.Version()
	m.log.WithField("version", version).Info("Schema is up to date")

	return nil
}

// Down rolls back the last migration.
func (m *migrator) Down(ctx context.Context) error {
	mig, err := m.newMigrate()
	if err != nil {
		return err
	}
	defer mig.Close()

	m.log.WithField("database", m.cfg.Database).
		Info("Rolling back last migration...")

	if err := mig.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rolling back migration: %w", err)
	}

	m.log.Info("Rollback completed")

	return nil
}

// Status returns the current migration version.
func (m *migrator) Status(ctx context.Context) (uint, bool, error) {
	mig, err := m.newMigrate()
	if err != nil {
		return 0, false, err
	}
	defer mig.Close()

	version, dirty, err := mig.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, fmt.Errorf("getting migration version: %w", err)
	}

	return version, dirty, nil
}

// dsn builds the migration DSN from the connection settings.
// x-multi-statement lets one migration file carry several statements.
func (m *migrator) dsn() string {
	u := url.URL{
		Scheme:   "clickhouse",
		Host:     m.cfg.Endpoint,
		Path:     "/" + m.cfg.Database,
		RawQuery: "x-multi-statement=true",
	}

	if m.cfg.Username != "" {
		u.User = url.UserPassword(m.cfg.Username, m.cfg.Password)
	}

	return u.String()
}

// newMigrate creates a new migrate instance over the embedded SQL.
func (m *migrator) newMigrate() (*migrate.Migrate, error) {
	source, err := iofs.New(migrations, "sql")
	if err != nil {
		return nil, fmt.Errorf("creating migration source: %w", err)
	}

	mig, err := migrate.NewWithSourceInstance("iofs", source, m.dsn())
	if err != nil {
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}

	return mig, nil
}
