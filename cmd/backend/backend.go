package main

import (
	"context"
	"database/sql"
	"time"

	"panorama-viewer/internal/blob"
	"panorama-viewer/internal/config"
	"panorama-viewer/internal/db"
	"panorama-viewer/internal/logging"
	"panorama-viewer/internal/panorama"
)

// backend holds whatever storage could be reached at startup. Missing
// pieces stay nil and the service runs degraded.
type backend struct {
	sqlDB   *sql.DB
	records *db.Repository
	blobs   *blob.MinioStore
}

// openBackend connects the metadata database and the object store. No
// failure here is fatal: each is logged and the piece is left out.
func openBackend(ctx context.Context, cfg *config.Config) *backend {
	b := &backend{}

	if cfg.Database.URL == "" {
		logging.Warn().Msg("database_not_configured")
	} else if conn, err := db.OpenDB(ctx, cfg.Database.URL, db.Options{
		MaxOpenConns:   cfg.Database.MaxOpenConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	}); err != nil {
		logging.Error().Err(err).Msg("db_connect_failed")
	} else if err := migrateSchema(ctx, cfg); err != nil {
		logging.Error().Err(err).Msg("migration_failed")
		_ = conn.Close()
	} else {
		b.sqlDB = conn
		b.records = db.NewRepository(conn)
		logging.Info().Msg("database_ready")
	}

	if !cfg.StorageConfigured() {
		logging.Warn().Msg("storage_not_configured")
	} else {
		sctx, cancel := context.WithTimeout(ctx, orDefault(cfg.Storage.ConnectTimeout))
		store, err := blob.Open(sctx, blob.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
		})
		cancel()
		if err != nil {
			logging.Error().Err(err).Str("endpoint", cfg.Storage.Endpoint).Msg("storage_connect_failed")
		} else {
			b.blobs = store
			logging.Info().Str("bucket", cfg.Storage.Bucket).Msg("storage_ready")
		}
	}

	return b
}

// connectTimeout applies when a configured bound is unset.
const connectTimeout = 5 * time.Second

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return connectTimeout
	}
	return d
}

// migrateSchema applies the schema within the database connect timeout.
func migrateSchema(ctx context.Context, cfg *config.Config) error {
	mctx, cancel := context.WithTimeout(ctx, orDefault(cfg.Database.ConnectTimeout))
	defer cancel()
	return db.RunMigrations(mctx, cfg.Database.URL)
}

// Panorama returns the store set for the service. Interface fields are
// only assigned when the concrete store exists.
func (b *backend) Panorama() *panorama.Backend {
	pb := &panorama.Backend{}
	if b.records != nil {
		pb.Records = b.records
		pb.Albums = b.records
	}
	if b.blobs != nil {
		pb.Blobs = b.blobs
	}
	return pb
}

func (b *backend) Service(cfg *config.Config) *panorama.Service {
	return panorama.NewService(b.Panorama(), panorama.Options{
		AdminSecret:    cfg.AdminSecretOption(),
		StorageTimeout: cfg.Storage.Timeout,
	})
}

// Checks feeds /health and /ready. Absent stores map to a nil Pinger.
func (b *backend) Checks() map[string]panorama.Pinger {
	checks := map[string]panorama.Pinger{"database": nil, "storage": nil}
	if b.records != nil {
		checks["database"] = b.records
	}
	if b.blobs != nil {
		checks["storage"] = b.blobs
	}
	return checks
}

func (b *backend) Close() {
	if b.sqlDB != nil {
		_ = b.sqlDB.Close()
	}
}
