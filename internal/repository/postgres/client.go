package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/codeldorado/rebill/internal/config"
	"github.com/codeldorado/rebill/internal/logger"
)

// Connect opens the postgres pool, waiting with exponential backoff for the
// database to become reachable, and optionally applies pending migrations.
func Connect(cfg config.PostgresConfig, log *logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 60 * time.Second
	if err := backoff.Retry(func() error {
		if pingErr := db.Ping(); pingErr != nil {
			log.Warnw("postgres not ready, retrying", "error", pingErr)
			return pingErr
		}
		return nil
	}, policy); err != nil {
		return nil, fmt.Errorf("postgres did not become ready: %w", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(db, cfg.MigrationsPath, log); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate applies pending schema migrations from the given directory
func Migrate(db *sql.DB, path string, log *logger.Logger) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to init migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Infow("database schema up to date", "migrations_path", path)
	return nil
}
