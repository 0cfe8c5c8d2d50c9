package panorama

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"

	"panorama-viewer/internal/logging"
)

// DefaultStorageTimeout bounds a single storage call when Options leaves
// StorageTimeout unset.
const DefaultStorageTimeout = 30 * time.Second

// Options configures a Service.
type Options struct {
	// AdminSecret, when non-nil, must be presented to delete anything.
	AdminSecret *string

	// StorageTimeout bounds each storage call.
	StorageTimeout time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service implements the panorama and album operations.
type Service struct {
	backend Backend
	opts    Options
}

// NewService returns a Service over b. A nil b, or nil members of it,
// put the service in degraded mode.
func NewService(b *Backend, opts Options) *Service {
	s := &Service{opts: opts}
	if b != nil {
		s.backend = *b
	}
	if s.opts.StorageTimeout <= 0 {
		s.opts.StorageTimeout = DefaultStorageTimeout
	}
	if s.opts.Now == nil {
		s.opts.Now = time.Now
	}
	return s
}

// UploadInput is one image upload. Title and Description are nil when the
// client did not send them.
type UploadInput struct {
	Data        []byte
	Filename    string
	ContentType string
	Title       *string
	Description *string
}

// Created identifies a newly created panorama or album.
type Created struct {
	ID    uuid.UUID
	Title string
}

// Image is the raw content of a panorama.
type Image struct {
	Data        []byte
	ContentType string
}

// Status is the health summary served by /status.
type Status struct {
	Connected     bool
	PanoramaCount int64
}

// storageCtx detaches a storage call from client cancellation and bounds
// it by the configured timeout. Once issued, a call runs to completion or
// timeout.
func (s *Service) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.opts.StorageTimeout)
}

func (s *Service) authorize(provided *string) error {
	if s.opts.AdminSecret == nil {
		return nil
	}
	if provided == nil || *provided == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(*provided), []byte(*s.opts.AdminSecret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// List returns every panorama, newest first.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	if s.backend.Records == nil {
		return nil, ErrStorageUnavailable
	}
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	items, err := s.backend.Records.ListPanoramas(sctx)
	if err != nil {
		return nil, storageError("list panoramas", err)
	}
	if items == nil {
		items = []Summary{}
	}
	return items, nil
}

// Upload validates in and stores it as a new panorama. The blob is
// written before the record; a failed record insert leaves the blob
// behind and is logged with its reference.
func (s *Service) Upload(ctx context.Context, in UploadInput) (Created, error) {
	if s.backend.Records == nil || s.backend.Blobs == nil {
		return Created{}, ErrStorageUnavailable
	}
	if in.Filename == "" {
		return Created{}, ErrEmptyFilename
	}
	if !AllowedExtension(in.Filename) {
		return Created{}, ErrUnsupportedFormat
	}
	if len(in.Data) > MaxUploadBytes {
		return Created{}, ErrPayloadTooLarge
	}
	if err := ValidateImage(in.Data); err != nil {
		return Created{}, err
	}

	title := in.Filename
	if in.Title != nil {
		title = *in.Title
	}
	description := ""
	if in.Description != nil {
		description = *in.Description
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	ref, err := s.backend.Blobs.Put(sctx, in.Data, in.ContentType)
	if err != nil {
		return Created{}, storageError("put blob", err)
	}

	id, err := s.backend.Records.InsertPanorama(sctx, Record{
		Title:       title,
		Description: description,
		Filename:    in.Filename,
		BlobRef:     ref,
		FileSize:    int64(len(in.Data)),
		ContentType: in.ContentType,
		CreatedAt:   s.opts.Now().UTC(),
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("blob_ref", ref).Msg("blob_orphaned")
		return Created{}, storageError("insert panorama", err)
	}

	return Created{ID: id, Title: title}, nil
}

func (s *Service) find(ctx context.Context, id uuid.UUID) (Record, error) {
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	rec, err := s.backend.Records.FindPanorama(sctx, id)
	if errors.Is(err, ErrNoRecord) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, storageError("find panorama", err)
	}
	return rec, nil
}

// GetMetadata returns the full record for rawID.
func (s *Service) GetMetadata(ctx context.Context, rawID string) (Record, error) {
	if s.backend.Records == nil {
		return Record{}, ErrStorageUnavailable
	}
	id, err := ParseID(rawID)
	if err != nil {
		return Record{}, err
	}
	return s.find(ctx, id)
}

// GetImage returns the stored bytes for rawID. An empty stored content
// type is reported as image/jpeg.
func (s *Service) GetImage(ctx context.Context, rawID string) (Image, error) {
	if s.backend.Records == nil || s.backend.Blobs == nil {
		return Image{}, ErrStorageUnavailable
	}
	id, err := ParseID(rawID)
	if err != nil {
		return Image{}, err
	}
	rec, err := s.find(ctx, id)
	if err != nil {
		return Image{}, err
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	data, err := s.backend.Blobs.Get(sctx, rec.BlobRef)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("id", id.String()).
			Str("blob_ref", rec.BlobRef).
			Msg("blob_missing_for_record")
		return Image{}, storageError("get blob", err)
	}

	ct := rec.ContentType
	if ct == "" {
		ct = "image/jpeg"
	}
	return Image{Data: data, ContentType: ct}, nil
}

// Update applies the present fields of p to rawID.
func (s *Service) Update(ctx context.Context, rawID string, p Patch) error {
	if s.backend.Records == nil {
		return ErrStorageUnavailable
	}
	id, err := ParseID(rawID)
	if err != nil {
		return err
	}
	if p.empty() {
		return ErrNoFieldsToUpdate
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	matched, err := s.backend.Records.UpdatePanorama(sctx, id, p)
	if err != nil {
		return storageError("update panorama", err)
	}
	if !matched {
		return ErrNotFound
	}
	return nil
}

// Delete removes rawID and its blob. The secret check runs before the id
// is parsed, so an unauthorised caller learns nothing about the id.
func (s *Service) Delete(ctx context.Context, rawID string, secret *string) error {
	if s.backend.Records == nil || s.backend.Blobs == nil {
		return ErrStorageUnavailable
	}
	if err := s.authorize(secret); err != nil {
		return err
	}
	id, err := ParseID(rawID)
	if err != nil {
		return err
	}
	rec, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	var errs []error
	if err := s.backend.Blobs.Delete(sctx, rec.BlobRef); err != nil {
		errs = append(errs, storageError("delete blob", err))
	}
	if _, err := s.backend.Records.DeletePanorama(sctx, id); err != nil {
		errs = append(errs, storageError("delete panorama", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Status reports metadata store presence and the panorama count. It never
// fails; a count error is logged and reported as zero.
func (s *Service) Status(ctx context.Context) Status {
	if s.backend.Records == nil {
		return Status{}
	}
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	n, err := s.backend.Records.CountPanoramas(sctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("count_panoramas_failed")
		n = 0
	}
	return Status{Connected: true, PanoramaCount: n}
}
