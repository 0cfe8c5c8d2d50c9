package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"panorama-viewer/internal/config"
	"panorama-viewer/internal/db"
	"panorama-viewer/internal/logging"
	"panorama-viewer/internal/server"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return errors.New("config not initialized")
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	b := openBackend(ctx, cfg)
	defer b.Close()

	srv := server.New(server.Config{
		Addr:    cfg.Addr(),
		Service: b.Service(cfg),
		Checks:  b.Checks(),
		Version: version,
	})

	// Start the HTTP server in a background goroutine so we can wait for
	// signals while it runs.
	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("addr", cfg.Addr()).
			Str("version", version).
			Bool("database", b.records != nil).
			Bool("storage", b.blobs != nil).
			Msg("starting")
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("shutting_down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logging.Info().Msg("shutdown_complete")
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil || cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is required")
			}
			logging.Info().Msg("running_migrations")
			if err := db.RunMigrations(cmd.Context(), cfg.Database.URL); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logging.Info().Msg("migrations_complete")
			return nil
		},
	}
}
