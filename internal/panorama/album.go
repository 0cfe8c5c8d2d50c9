package panorama

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// AlbumInput creates an album. PanoramaIDs are raw client ids.
type AlbumInput struct {
	Title       string
	Description string
	PanoramaIDs []string
}

// AlbumPatch changes an album. Nil means unchanged.
type AlbumPatch struct {
	Title       *string
	Description *string
	PanoramaIDs *[]string
}

func (p AlbumPatch) empty() bool {
	return p.Title == nil && p.Description == nil && p.PanoramaIDs == nil
}

// AlbumDetail is an album with its member panoramas in album order.
type AlbumDetail struct {
	Album
	Panoramas []Summary
}

// parseMembers parses raw ids and drops repeats, keeping the first
// position of each.
func parseMembers(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	seen := make(map[uuid.UUID]struct{}, len(raw))
	for _, r := range raw {
		id, err := ParseID(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListAlbums returns every album, newest first.
func (s *Service) ListAlbums(ctx context.Context) ([]AlbumSummary, error) {
	if s.backend.Albums == nil {
		return nil, ErrStorageUnavailable
	}
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	items, err := s.backend.Albums.ListAlbums(sctx)
	if err != nil {
		return nil, storageError("list albums", err)
	}
	if items == nil {
		items = []AlbumSummary{}
	}
	return items, nil
}

// CreateAlbum validates in and stores a new album.
func (s *Service) CreateAlbum(ctx context.Context, in AlbumInput) (Created, error) {
	if s.backend.Albums == nil {
		return Created{}, ErrStorageUnavailable
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Created{}, ErrMissingTitle
	}
	members, err := parseMembers(in.PanoramaIDs)
	if err != nil {
		return Created{}, err
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	id, err := s.backend.Albums.InsertAlbum(sctx, Album{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		PanoramaIDs: members,
		CreatedAt:   s.opts.Now().UTC(),
	})
	if err != nil {
		return Created{}, storageError("insert album", err)
	}
	return Created{ID: id, Title: title}, nil
}

// GetAlbum returns rawID with its member summaries.
func (s *Service) GetAlbum(ctx context.Context, rawID string) (AlbumDetail, error) {
	if s.backend.Albums == nil {
		return AlbumDetail{}, ErrStorageUnavailable
	}
	id, err := ParseID(rawID)
	if err != nil {
		return AlbumDetail{}, err
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	a, err := s.backend.Albums.FindAlbum(sctx, id)
	if errors.Is(err, ErrNoRecord) {
		return AlbumDetail{}, ErrNotFound
	}
	if err != nil {
		return AlbumDetail{}, storageError("find album", err)
	}
	members, err := s.backend.Albums.AlbumPanoramas(sctx, id)
	if err != nil {
		return AlbumDetail{}, storageError("album panoramas", err)
	}
	if members == nil {
		members = []Summary{}
	}
	if a.PanoramaIDs == nil {
		a.PanoramaIDs = []uuid.UUID{}
	}
	return AlbumDetail{Album: a, Panoramas: members}, nil
}

// UpdateAlbum applies the present fields of p to rawID.
func (s *Service) UpdateAlbum(ctx context.Context, rawID string, p AlbumPatch) error {
	if s.backend.Albums == nil {
		return ErrStorageUnavailable
	}
	id, err := ParseID(rawID)
	if err != nil {
		return err
	}
	if p.empty() {
		return ErrNoFieldsToUpdate
	}

	var u AlbumUpdate
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return ErrMissingTitle
		}
		u.Title = &title
	}
	if p.Description != nil {
		d := strings.TrimSpace(*p.Description)
		u.Description = &d
	}
	if p.PanoramaIDs != nil {
		members, err := parseMembers(*p.PanoramaIDs)
		if err != nil {
			return err
		}
		u.PanoramaIDs = &members
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	matched, err := s.backend.Albums.UpdateAlbum(sctx, id, u)
	if err != nil {
		return storageError("update album", err)
	}
	if !matched {
		return ErrNotFound
	}
	return nil
}

// DeleteAlbum removes rawID. Member panoramas are kept.
func (s *Service) DeleteAlbum(ctx context.Context, rawID string, secret *string) error {
	if s.backend.Albums == nil {
		return ErrStorageUnavailable
	}
	if err := s.authorize(secret); err != nil {
		return err
	}
	id, err := ParseID(rawID)
	if err != nil {
		return err
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	matched, err := s.backend.Albums.DeleteAlbum(sctx, id)
	if err != nil {
		return storageError("delete album", err)
	}
	if !matched {
		return ErrNotFound
	}
	return nil
}
