// Package memstore is an in-memory implementation of the panorama storage
// interfaces, used by service and handler tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"panorama-viewer/internal/panorama"
)

// Store keeps records, albums and blobs in maps. It is safe for
// concurrent use.
type Store struct {
	mu      sync.Mutex
	seq     int64
	records map[uuid.UUID]entry
	albums  map[uuid.UUID]albumEntry
	blobs   map[string][]byte
	fail    map[string]error
}

type entry struct {
	rec panorama.Record
	seq int64
}

type albumEntry struct {
	album panorama.Album
	seq   int64
}

var (
	_ panorama.RecordStore = (*Store)(nil)
	_ panorama.AlbumStore  = (*Store)(nil)
	_ panorama.BlobStore   = (*Store)(nil)
	_ panorama.Pinger      = (*Store)(nil)
)

func New() *Store {
	return &Store{
		records: make(map[uuid.UUID]entry),
		albums:  make(map[uuid.UUID]albumEntry),
		blobs:   make(map[string][]byte),
		fail:    make(map[string]error),
	}
}

// Backend returns a fully populated backend over s.
func (s *Store) Backend() *panorama.Backend {
	return &panorama.Backend{Records: s, Albums: s, Blobs: s}
}

// FailOn makes the named method return err until cleared with a nil err.
// Names are method names, e.g. "InsertPanorama" or "Put".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

// BlobCount returns the number of stored blobs.
func (s *Store) BlobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// HasBlob reports whether ref is stored.
func (s *Store) HasBlob(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[ref]
	return ok
}

func (s *Store) failure(op string) error {
	return s.fail[op]
}

func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure("Ping")
}

func (s *Store) Put(_ context.Context, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Put"); err != nil {
		return "", err
	}
	ref := "panoramas/" + uuid.NewString()
	s.blobs[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (s *Store) Get(_ context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Get"); err != nil {
		return nil, err
	}
	b, ok := s.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", ref)
	}
	return append([]byte(nil), b...), nil
}

func (s *Store) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Delete"); err != nil {
		return err
	}
	delete(s.blobs, ref)
	return nil
}

func (s *Store) InsertPanorama(_ context.Context, rec panorama.Record) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("InsertPanorama"); err != nil {
		return uuid.Nil, err
	}
	s.seq++
	rec.ID = uuid.New()
	s.records[rec.ID] = entry{rec: rec, seq: s.seq}
	return rec.ID, nil
}

func (s *Store) FindPanorama(_ context.Context, id uuid.UUID) (panorama.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindPanorama"); err != nil {
		return panorama.Record{}, err
	}
	e, ok := s.records[id]
	if !ok {
		return panorama.Record{}, panorama.ErrNoRecord
	}
	return e.rec, nil
}

func (s *Store) ListPanoramas(context.Context) ([]panorama.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ListPanoramas"); err != nil {
		return nil, err
	}
	entries := make([]entry, 0, len(s.records))
	for _, e := range s.records {
		entries = append(entries, e)
	}
	sortNewestFirst(entries)

	out := make([]panorama.Summary, 0, len(entries))
	for _, e := range entries {
		out = append(out, summary(e.rec))
	}
	return out, nil
}

func (s *Store) UpdatePanorama(_ context.Context, id uuid.UUID, p panorama.Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpdatePanorama"); err != nil {
		return false, err
	}
	e, ok := s.records[id]
	if !ok {
		return false, nil
	}
	if p.Title != nil {
		e.rec.Title = *p.Title
	}
	if p.Description != nil {
		e.rec.Description = *p.Description
	}
	s.records[id] = e
	return true, nil
}

func (s *Store) DeletePanorama(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeletePanorama"); err != nil {
		return false, err
	}
	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)

	for aid, ae := range s.albums {
		kept := ae.album.PanoramaIDs[:0:0]
		for _, pid := range ae.album.PanoramaIDs {
			if pid != id {
				kept = append(kept, pid)
			}
		}
		ae.album.PanoramaIDs = kept
		s.albums[aid] = ae
	}
	return true, nil
}

func (s *Store) CountPanoramas(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CountPanoramas"); err != nil {
		return 0, err
	}
	return int64(len(s.records)), nil
}

// checkMembers must be called with mu held.
func (s *Store) checkMembers(ids []uuid.UUID) error {
	for _, id := range ids {
		if _, ok := s.records[id]; !ok {
			return panorama.ErrUnknownPanorama
		}
	}
	return nil
}

func (s *Store) InsertAlbum(_ context.Context, a panorama.Album) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("InsertAlbum"); err != nil {
		return uuid.Nil, err
	}
	if err := s.checkMembers(a.PanoramaIDs); err != nil {
		return uuid.Nil, err
	}
	s.seq++
	a.ID = uuid.New()
	a.PanoramaIDs = append([]uuid.UUID(nil), a.PanoramaIDs...)
	s.albums[a.ID] = albumEntry{album: a, seq: s.seq}
	return a.ID, nil
}

func (s *Store) FindAlbum(_ context.Context, id uuid.UUID) (panorama.Album, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindAlbum"); err != nil {
		return panorama.Album{}, err
	}
	ae, ok := s.albums[id]
	if !ok {
		return panorama.Album{}, panorama.ErrNoRecord
	}
	a := ae.album
	a.PanoramaIDs = append([]uuid.UUID{}, a.PanoramaIDs...)
	return a, nil
}

func (s *Store) ListAlbums(context.Context) ([]panorama.AlbumSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("ListAlbums"); err != nil {
		return nil, err
	}
	entries := make([]albumEntry, 0, len(s.albums))
	for _, ae := range s.albums {
		entries = append(entries, ae)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.album.CreatedAt.Equal(b.album.CreatedAt) {
			return a.album.CreatedAt.After(b.album.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]panorama.AlbumSummary, 0, len(entries))
	for _, ae := range entries {
		out = append(out, panorama.AlbumSummary{
			ID:            ae.album.ID,
			Title:         ae.album.Title,
			Description:   ae.album.Description,
			PanoramaCount: len(ae.album.PanoramaIDs),
			CreatedAt:     ae.album.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) AlbumPanoramas(_ context.Context, id uuid.UUID) ([]panorama.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("AlbumPanoramas"); err != nil {
		return nil, err
	}
	ae, ok := s.albums[id]
	if !ok {
		return []panorama.Summary{}, nil
	}
	out := make([]panorama.Summary, 0, len(ae.album.PanoramaIDs))
	for _, pid := range ae.album.PanoramaIDs {
		if e, ok := s.records[pid]; ok {
			out = append(out, summary(e.rec))
		}
	}
	return out, nil
}

func (s *Store) UpdateAlbum(_ context.Context, id uuid.UUID, u panorama.AlbumUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpdateAlbum"); err != nil {
		return false, err
	}
	ae, ok := s.albums[id]
	if !ok {
		return false, nil
	}
	if u.PanoramaIDs != nil {
		if err := s.checkMembers(*u.PanoramaIDs); err != nil {
			return false, err
		}
		ae.album.PanoramaIDs = append([]uuid.UUID(nil), (*u.PanoramaIDs)...)
	}
	if u.Title != nil {
		ae.album.Title = *u.Title
	}
	if u.Description != nil {
		ae.album.Description = *u.Description
	}
	s.albums[id] = ae
	return true, nil
}

func (s *Store) DeleteAlbum(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("DeleteAlbum"); err != nil {
		return false, err
	}
	if _, ok := s.albums[id]; !ok {
		return false, nil
	}
	delete(s.albums, id)
	return true, nil
}

func summary(r panorama.Record) panorama.Summary {
	return panorama.Summary{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		FileSize:    r.FileSize,
	}
}

func sortNewestFirst(entries []entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.rec.CreatedAt.Equal(b.rec.CreatedAt) {
			return a.rec.CreatedAt.After(b.rec.CreatedAt)
		}
		return a.seq > b.seq
	})
}
