package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateURL rewrites a postgres:// URL to the pgx5:// scheme the
// migrate driver registers.
func migrateURL(databaseURL string) (string, error) {
	for _, prefix := range []string{"postgres://", "postgresql://", "pgx5://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix), nil
		}
	}
	return "", fmt.Errorf("unsupported database url scheme")
}

// RunMigrations applies every pending up migration. An already current
// schema is not an error. If ctx ends first the call returns ctx's error;
// a migration already running is left to finish on its own.
func RunMigrations(ctx context.Context, databaseURL string) error {
	u, err := migrateURL(databaseURL)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- migrateUp(u) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("migrate: %w", ctx.Err())
	}
}

func migrateUp(u string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, u)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
