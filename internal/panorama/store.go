package panorama

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is a stored panorama: metadata plus the reference to its blob.
type Record struct {
	ID          uuid.UUID
	Title       string
	Description string
	Filename    string
	BlobRef     string
	FileSize    int64
	ContentType string
	CreatedAt   time.Time
}

// Summary is the listing projection of a Record.
type Summary struct {
	ID          uuid.UUID
	Title       string
	Description string
	CreatedAt   time.Time
	FileSize    int64
}

// Patch carries the mutable panorama fields. Nil means unchanged.
type Patch struct {
	Title       *string
	Description *string
}

func (p Patch) empty() bool { return p.Title == nil && p.Description == nil }

// Album groups panoramas in a fixed order. Albums never own panoramas.
type Album struct {
	ID          uuid.UUID
	Title       string
	Description string
	PanoramaIDs []uuid.UUID
	CreatedAt   time.Time
}

// AlbumSummary is the listing projection of an Album.
type AlbumSummary struct {
	ID            uuid.UUID
	Title         string
	Description   string
	PanoramaCount int
	CreatedAt     time.Time
}

// AlbumUpdate is the store-level album mutation. Nil means unchanged;
// a non-nil PanoramaIDs replaces the whole membership list.
type AlbumUpdate struct {
	Title       *string
	Description *string
	PanoramaIDs *[]uuid.UUID
}

// RecordStore persists panorama metadata. Find returns ErrNoRecord when
// nothing matches; Update and Delete report whether a row matched.
type RecordStore interface {
	InsertPanorama(ctx context.Context, rec Record) (uuid.UUID, error)
	FindPanorama(ctx context.Context, id uuid.UUID) (Record, error)
	// ListPanoramas returns summaries sorted by CreatedAt, newest first.
	ListPanoramas(ctx context.Context) ([]Summary, error)
	UpdatePanorama(ctx context.Context, id uuid.UUID, p Patch) (bool, error)
	DeletePanorama(ctx context.Context, id uuid.UUID) (bool, error)
	CountPanoramas(ctx context.Context) (int64, error)
}

// AlbumStore persists albums and their ordered membership. Insert and
// Update return ErrUnknownPanorama when a member id has no record.
// Deleting a panorama removes it from every album.
type AlbumStore interface {
	InsertAlbum(ctx context.Context, a Album) (uuid.UUID, error)
	FindAlbum(ctx context.Context, id uuid.UUID) (Album, error)
	ListAlbums(ctx context.Context) ([]AlbumSummary, error)
	AlbumPanoramas(ctx context.Context, id uuid.UUID) ([]Summary, error)
	UpdateAlbum(ctx context.Context, id uuid.UUID, u AlbumUpdate) (bool, error)
	DeleteAlbum(ctx context.Context, id uuid.UUID) (bool, error)
}

// BlobStore holds image bytes under opaque references. A reference is
// never shared between records.
type BlobStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend groups the storage handles built once at startup. Any member
// may be nil, in which case operations needing it fail with
// ErrStorageUnavailable.
type Backend struct {
	Records RecordStore
	Albums  AlbumStore
	Blobs   BlobStore
}
