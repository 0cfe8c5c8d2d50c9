package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"panorama-viewer/internal/panorama"
)

// PostgreSQL error codes the repository translates.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// Repository implements panorama.RecordStore and panorama.AlbumStore
// over a *sql.DB.
type Repository struct {
	db *sql.DB
}

var (
	_ panorama.RecordStore = (*Repository)(nil)
	_ panorama.AlbumStore  = (*Repository)(nil)
	_ panorama.Pinger      = (*Repository)(nil)
)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func (r *Repository) InsertPanorama(ctx context.Context, rec panorama.Record) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO panoramas (title, description, filename, blob_ref, file_size, content_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		rec.Title, rec.Description, rec.Filename, rec.BlobRef, rec.FileSize, rec.ContentType, rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return uuid.Nil, fmt.Errorf("blob reference %q already used: %w", rec.BlobRef, err)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func (r *Repository) FindPanorama(ctx context.Context, id uuid.UUID) (panorama.Record, error) {
	rec := panorama.Record{ID: id}
	err := r.db.QueryRowContext(ctx,
		`SELECT title, description, filename, blob_ref, file_size, content_type, created_at
		 FROM panoramas
		 WHERE id = $1`,
		id,
	).Scan(&rec.Title, &rec.Description, &rec.Filename, &rec.BlobRef, &rec.FileSize, &rec.ContentType, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return panorama.Record{}, panorama.ErrNoRecord
	}
	if err != nil {
		return panorama.Record{}, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func (r *Repository) ListPanoramas(ctx context.Context) ([]panorama.Summary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, created_at, file_size
		 FROM panoramas
		 ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]panorama.Summary, error) {
	defer func() { _ = rows.Close() }()

	out := []panorama.Summary{}
	for rows.Next() {
		var s panorama.Summary
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.CreatedAt, &s.FileSize); err != nil {
			return nil, err
		}
		s.CreatedAt = s.CreatedAt.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) UpdatePanorama(ctx context.Context, id uuid.UUID, p panorama.Patch) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE panoramas
		 SET title = COALESCE($2, title), description = COALESCE($3, description)
		 WHERE id = $1`,
		id, nullString(p.Title), nullString(p.Description),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *Repository) DeletePanorama(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM panoramas WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *Repository) CountPanoramas(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM panoramas`).Scan(&n)
	return n, err
}

func (r *Repository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertMembers(ctx context.Context, tx *sql.Tx, albumID uuid.UUID, ids []uuid.UUID) error {
	for pos, pid := range ids {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO album_panoramas (album_id, panorama_id, position) VALUES ($1, $2, $3)`,
			albumID, pid, pos,
		)
		if err != nil {
			if pgCode(err) == pgForeignKeyViolation {
				return panorama.ErrUnknownPanorama
			}
			return err
		}
	}
	return nil
}

func (r *Repository) InsertAlbum(ctx context.Context, a panorama.Album) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO albums (title, description, created_at) VALUES ($1, $2, $3) RETURNING id`,
			a.Title, a.Description, a.CreatedAt,
		).Scan(&id)
		if err != nil {
			return err
		}
		return insertMembers(ctx, tx, id, a.PanoramaIDs)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *Repository) FindAlbum(ctx context.Context, id uuid.UUID) (panorama.Album, error) {
	a := panorama.Album{ID: id}
	err := r.db.QueryRowContext(ctx,
		`SELECT title, description, created_at FROM albums WHERE id = $1`, id,
	).Scan(&a.Title, &a.Description, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return panorama.Album{}, panorama.ErrNoRecord
	}
	if err != nil {
		return panorama.Album{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()

	rows, err := r.db.QueryContext(ctx,
		`SELECT panorama_id FROM album_panoramas WHERE album_id = $1 ORDER BY position`, id)
	if err != nil {
		return panorama.Album{}, err
	}
	defer func() { _ = rows.Close() }()

	a.PanoramaIDs = []uuid.UUID{}
	for rows.Next() {
		var pid uuid.UUID
		if err := rows.Scan(&pid); err != nil {
			return panorama.Album{}, err
		}
		a.PanoramaIDs = append(a.PanoramaIDs, pid)
	}
	return a, rows.Err()
}

func (r *Repository) ListAlbums(ctx context.Context) ([]panorama.AlbumSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.title, a.description, a.created_at, count(ap.panorama_id)
		 FROM albums a
		 LEFT JOIN album_panoramas ap ON ap.album_id = a.id
		 GROUP BY a.id
		 ORDER BY a.created_at DESC, a.id DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []panorama.AlbumSummary{}
	for rows.Next() {
		var s panorama.AlbumSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.CreatedAt, &s.PanoramaCount); err != nil {
			return nil, err
		}
		s.CreatedAt = s.CreatedAt.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) AlbumPanoramas(ctx context.Context, id uuid.UUID) ([]panorama.Summary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.title, p.description, p.created_at, p.file_size
		 FROM album_panoramas ap
		 JOIN panoramas p ON p.id = ap.panorama_id
		 WHERE ap.album_id = $1
		 ORDER BY ap.position`, id)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

func (r *Repository) UpdateAlbum(ctx context.Context, id uuid.UUID, u panorama.AlbumUpdate) (bool, error) {
	matched := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE albums
			 SET title = COALESCE($2, title), description = COALESCE($3, description)
			 WHERE id = $1`,
			id, nullString(u.Title), nullString(u.Description),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		matched = true

		if u.PanoramaIDs == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM album_panoramas WHERE album_id = $1`, id); err != nil {
			return err
		}
		return insertMembers(ctx, tx, id, *u.PanoramaIDs)
	})
	if err != nil {
		return false, err
	}
	return matched, nil
}

func (r *Repository) DeleteAlbum(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM albums WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
