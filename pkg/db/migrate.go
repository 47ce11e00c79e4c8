package db

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"installments/pkg/config"
)

// Migrate applies all pending up migrations from cfg.MigrationsPath. It
// prefers DIRECT_URL, because poolers tend to break the advisory locks
// golang-migrate takes.
func Migrate(cfg config.Config) error {
	dsn := cfg.DirectURL
	if dsn == "" {
		dsn = cfg.DatabaseURL
	}
	if dsn == "" {
		dsn = discreteDSN(cfg.DB)
	}

	m, err := migrate.New("file://"+cfg.MigrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
