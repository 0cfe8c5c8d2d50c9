package panorama_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"panorama-viewer/internal/memstore"
	"panorama-viewer/internal/panorama"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func strPtr(s string) *string { return &s }

func newService(opts panorama.Options) (*panorama.Service, *memstore.Store) {
	st := memstore.New()
	if opts.Now == nil {
		opts.Now = stepClock()
	}
	return panorama.NewService(st.Backend(), opts), st
}

func TestUploadRoundTrip(t *testing.T) {
	svc, _ := newService(panorama.Options{})
	ctx := context.Background()
	data := pngBytes(t)

	res, err := svc.Upload(ctx, panorama.UploadInput{
		Data:        data,
		Filename:    "hall.png",
		ContentType: "image/png",
		Title:       strPtr("Hall"),
		Description: strPtr("east wing"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Title != "Hall" {
		t.Errorf("title = %q, want Hall", res.Title)
	}

	rec, err := svc.GetMetadata(ctx, res.ID.String())
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if rec.Filename != "hall.png" || rec.Description != "east wing" || rec.FileSize != int64(len(data)) {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.CreatedAt.IsZero() || rec.CreatedAt.Location() != time.UTC {
		t.Errorf("created_at = %v, want non-zero UTC", rec.CreatedAt)
	}

	img, err := svc.GetImage(ctx, res.ID.String())
	if err != nil {
		t.Fatalf("GetImage: %v", err)
	}
	if !bytes.Equal(img.Data, data) {
		t.Error("image bytes differ from upload")
	}
	if img.ContentType != "image/png" {
		t.Errorf("content type = %q, want image/png", img.ContentType)
	}
}

func TestUpload_Defaults(t *testing.T) {
	svc, _ := newService(panorama.Options{})
	ctx := context.Background()

	res, err := svc.Upload(ctx, panorama.UploadInput{Data: jpegBytes(t), Filename: "sunset.jpg"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Title != "sunset.jpg" {
		t.Errorf("title = %q, want sunset.jpg", res.Title)
	}
	rec, err := svc.GetMetadata(ctx, res.ID.String())
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if rec.Description != "" {
		t.Errorf("description = %q, want empty", rec.Description)
	}
	img, err := svc.GetImage(ctx, res.ID.String())
	if err != nil {
		t.Fatalf("GetImage: %v", err)
	}
	if img.ContentType != "image/jpeg" {
		t.Errorf("content type = %q, want image/jpeg default", img.ContentType)
	}
}

func TestUpload_Validation(t *testing.T) {
	valid := pngBytes(t)
	huge := make([]byte, panorama.MaxUploadBytes+1)
	copy(huge, valid)

	tests := []struct {
		name     string
		filename string
		data     []byte
		want     error
	}{
		{"empty filename", "", valid, panorama.ErrEmptyFilename},
		{"exe extension", "tool.exe", valid, panorama.ErrUnsupportedFormat},
		{"no extension", "panorama", valid, panorama.ErrUnsupportedFormat},
		{"gif extension", "anim.gif", valid, panorama.ErrUnsupportedFormat},
		{"garbage named jpg", "fake.jpg", []byte("not an image at all"), panorama.ErrInvalidImage},
		{"empty data", "empty.png", nil, panorama.ErrInvalidImage},
		{"too large valid image", "big.png", huge, panorama.ErrPayloadTooLarge},
		{"too large wrong extension", "big.exe", huge, panorama.ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st := newService(panorama.Options{})
			_, err := svc.Upload(context.Background(), panorama.UploadInput{Data: tt.data, Filename: tt.filename})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Upload error = %v, want %v", err, tt.want)
			}
			if panorama.KindOf(err) != panorama.KindValidation {
				t.Errorf("kind = %v, want validation", panorama.KindOf(err))
			}
			if st.BlobCount() != 0 {
				t.Errorf("blob written for rejected upload")
			}
		})
	}
}

func TestUpload_ExtensionCaseInsensitive(t *testing.T) {
	svc, _ := newService(panorama.Options{})
	if _, err := svc.Upload(context.Background(), panorama.UploadInput{Data: pngBytes(t), Filename: "ROOM.PNG"}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
}

func TestUpload_Unavailable(t *testing.T) {
	st := memstore.New()
	tests := []struct {
		name    string
		backend *panorama.Backend
	}{
		{"nil backend", nil},
		{"no blob store", &panorama.Backend{Records: st}},
		{"no record store", &panorama.Backend{Blobs: st}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := panorama.NewService(tt.backend, panorama.Options{})
			// Empty filename would be a validation error; unavailability wins.
			_, err := svc.Upload(context.Background(), panorama.UploadInput{Filename: ""})
			if !errors.Is(err, panorama.ErrStorageUnavailable) {
				t.Fatalf("Upload error = %v, want ErrStorageUnavailable", err)
			}
		})
	}
}

func TestUpload_InsertFailureOrphansBlob(t *testing.T) {
	svc, st := newService(panorama.Options{})
	cause := errors.New("connection reset")
	st.FailOn("InsertPanorama", cause)

	_, err := svc.Upload(context.Background(), panorama.UploadInput{Data: pngBytes(t), Filename: "a.png"})
	if !errors.Is(err, panorama.ErrStorage) {
		t.Fatalf("Upload error = %v, want ErrStorage", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause not wrapped: %v", err)
	}
	if st.BlobCount() != 1 {
		t.Errorf("blob count = %d, want 1 orphan", st.BlobCount())
	}
}

func TestUpload_PutFailure(t *testing.T) {
	svc, st := newService(panorama.Options{})
	st.FailOn("Put", errors.New("bucket gone"))

	_, err := svc.Upload(context.Background(), panorama.UploadInput{Data: pngBytes(t), Filename: "a.png"})
	if !errors.Is(err, panorama.ErrStorage) {
		t.Fatalf("Upload error = %v, want ErrStorage", err)
	}
	n, _ := st.CountPanoramas(context.Background())
	if n != 0 {
		t.Errorf("record inserted after failed blob write")
	}
}

func TestList_NewestFirst(t *testing.T) {
	svc, _ := newService(panorama.Options{})
	ctx := context.Background()

	titles := []string{"first", "second", "third"}
	for _, title := range titles {
		if _, err := svc.Upload(ctx, panorama.UploadInput{Data: pngBytes(t), Filename: title + ".png", Title: strPtr(title)}); err != nil {
			t.Fatalf("Upload: %v", err)
		}
	}

	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	for i, want := range []string{"third", "second", "first"} {
		if items[i].Title != want {
			t.Errorf("items[%d] = %q, want %q", i, items[i].Title, want)
		}
	}
	for i := 1; i < len(items); i++ {
		if items[i].CreatedAt.After(items[i-1].CreatedAt) {
			t.Errorf("items not sorted newest first at %d", i)
		}
	}
}

func TestList_EmptyAndUnavailable(t *testing.T) {
	svc, _ := newService(panorama.Options{})
	items, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", items)
	}

	_, err = panorama.NewService(nil, panorama.Options{}).List(context.Background())
	if !errors.Is(err, panorama.ErrStorageUnavailable) {
		t.Errorf("List error = %v, want ErrStorageUnavailable", err)
	}
}

func TestLookups_InvalidAndUnknownID(t *testing.T) {
	svc, _ := newService(panorama.Options{})
	ctx := context.Background()
	unknown := uuid.NewString()

	if _, err := svc.GetMetadata(ctx, "not-a-uuid"); !errors.Is(err, panorama.ErrInvalidID) {
		t.Errorf("GetMetadata(invalid) = %v, want ErrInvalidID", err)
	}
	if _, err := svc.GetImage(ctx, "123"); !errors.Is(err, panorama.ErrInvalidID) {
		t.Errorf("GetImage(invalid) = %v, want ErrInvalidID", err)
	}
	if _, err := svc.GetMetadata(ctx, unknown); !errors.Is(err, panorama.ErrNotFound) {
		t.Errorf("GetMetadata(unknown) = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetImage(ctx, unknown); !errors.Is(err, panorama.ErrNotFound) {
		t.Errorf("GetImage(unknown) = %v, want ErrNotFound", err)
	}
	if err := svc.Update(ctx, unknown, panorama.Patch{Title: strPtr("x")}); !errors.Is(err, panorama.ErrNotFound) {
		t.Errorf("Update(unknown) = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, unknown, nil); !errors.Is(err, panorama.ErrNotFound) {
		t.Errorf("Delete(unknown) = %v, want ErrNotFound", err)
	}
}

func TestGetImage_MissingBlob(t *testing.T) {
	svc, st := newService(panorama.Options{})
	ctx := context.Background()
	res, err := svc.Upload(ctx, panorama.UploadInput{Data: pngBytes(t), Filename: "a.png"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	st.FailOn("Get", errors.New("no such key"))

	if _, err := svc.GetImage(ctx, res.ID.String()); !errors.Is(err, panorama.ErrStorage) {
		t.Fatalf("GetImage error = %v, want ErrStorage", err)
	}
}

func TestUpdate(t *testing.T) {
	svc, _ := newService(panorama.Options{})
	ctx := context.Background()
	res, err := svc.Upload(ctx, panorama.UploadInput{
		Data: pngBytes(t), Filename: "a.png", Title: strPtr("old"), Description: strPtr("keep me"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	id := res.ID.String()

	if err := svc.Update(ctx, id, panorama.Patch{}); !errors.Is(err, panorama.ErrNoFieldsToUpdate) {
		t.Fatalf("Update(empty) = %v, want ErrNoFieldsToUpdate", err)
	}
	if err := svc.Update(ctx, "bogus", panorama.Patch{Title: strPtr("x")}); !errors.Is(err, panorama.ErrInvalidID) {
		t.Fatalf("Update(bogus) = %v, want ErrInvalidID", err)
	}
	if err := svc.Update(ctx, id, panorama.Patch{Title: strPtr("new")}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	rec, err := svc.GetMetadata(ctx, id)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if rec.Title != "new" || rec.Description != "keep me" {
		t.Errorf("after update title=%q description=%q", rec.Title, rec.Description)
	}

	if err := svc.Update(ctx, id, panorama.Patch{Description: strPtr("")}); err != nil {
		t.Fatalf("Update(description): %v", err)
	}
	rec, _ = svc.GetMetadata(ctx, id)
	if rec.Title != "new" || rec.Description != "" {
		t.Errorf("after second update title=%q description=%q", rec.Title, rec.Description)
	}
}

func TestDelete_AdminSecret(t *testing.T) {
	tests := []struct {
		name     string
		secret   *string
		provided *string
		id       func(created string) string
		want     error
	}{
		{"configured, header missing", strPtr("s3cret"), nil, func(c string) string { return c }, panorama.ErrUnauthorized},
		{"configured, header empty", strPtr("s3cret"), strPtr(""), func(c string) string { return c }, panorama.ErrUnauthorized},
		{"configured, header wrong", strPtr("s3cret"), strPtr("guess"), func(c string) string { return c }, panorama.ErrUnauthorized},
		{"configured, wrong header, unknown id", strPtr("s3cret"), strPtr("guess"), func(string) string { return uuid.NewString() }, panorama.ErrUnauthorized},
		{"configured, wrong header, invalid id", strPtr("s3cret"), nil, func(string) string { return "nope" }, panorama.ErrUnauthorized},
		{"configured, correct header", strPtr("s3cret"), strPtr("s3cret"), func(c string) string { return c }, nil},
		{"not configured, no header", nil, nil, func(c string) string { return c }, nil},
		{"not configured, any header", nil, strPtr("whatever"), func(c string) string { return c }, nil},
		{"correct header, invalid id", strPtr("s3cret"), strPtr("s3cret"), func(string) string { return "nope" }, panorama.ErrInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st := newService(panorama.Options{AdminSecret: tt.secret})
			ctx := context.Background()
			res, err := svc.Upload(ctx, panorama.UploadInput{Data: pngBytes(t), Filename: "a.png"})
			if err != nil {
				t.Fatalf("Upload: %v", err)
			}

			err = svc.Delete(ctx, tt.id(res.ID.String()), tt.provided)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Delete: %v", err)
				}
				if st.BlobCount() != 0 {
					t.Errorf("blob left after delete")
				}
				if _, err := svc.GetMetadata(ctx, res.ID.String()); !errors.Is(err, panorama.ErrNotFound) {
					t.Errorf("GetMetadata after delete = %v, want ErrNotFound", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Delete error = %v, want %v", err, tt.want)
			}
			if st.BlobCount() != 1 {
				t.Errorf("blob removed by rejected delete")
			}
		})
	}
}

func TestDelete_BlobFailureStillRemovesRecord(t *testing.T) {
	svc, st := newService(panorama.Options{})
	ctx := context.Background()
	res, err := svc.Upload(ctx, panorama.UploadInput{Data: pngBytes(t), Filename: "a.png"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	st.FailOn("Delete", errors.New("s3 down"))

	err = svc.Delete(ctx, res.ID.String(), nil)
	if !errors.Is(err, panorama.ErrStorage) {
		t.Fatalf("Delete error = %v, want ErrStorage", err)
	}
	if _, err := svc.GetMetadata(ctx, res.ID.String()); !errors.Is(err, panorama.ErrNotFound) {
		t.Errorf("record survived: %v", err)
	}
}

func TestDelete_Unavailable(t *testing.T) {
	svc := panorama.NewService(nil, panorama.Options{AdminSecret: strPtr("x")})
	if err := svc.Delete(context.Background(), "nope", nil); !errors.Is(err, panorama.ErrStorageUnavailable) {
		t.Fatalf("Delete error = %v, want ErrStorageUnavailable", err)
	}
}

func TestStatus(t *testing.T) {
	svc, st := newService(panorama.Options{})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := svc.Upload(ctx, panorama.UploadInput{Data: pngBytes(t), Filename: "a.png"}); err != nil {
			t.Fatalf("Upload: %v", err)
		}
	}

	if got := svc.Status(ctx); !got.Connected || got.PanoramaCount != 2 {
		t.Errorf("Status() = %+v, want connected with 2", got)
	}

	st.FailOn("CountPanoramas", errors.New("timeout"))
	if got := svc.Status(ctx); !got.Connected || got.PanoramaCount != 0 {
		t.Errorf("Status() with failing count = %+v, want connected with 0", got)
	}

	if got := panorama.NewService(nil, panorama.Options{}).Status(ctx); got.Connected || got.PanoramaCount != 0 {
		t.Errorf("degraded Status() = %+v", got)
	}
}

// ctxBlobs fails Put when its context is already done.
type ctxBlobs struct {
	*memstore.Store
	deadline bool
}

func (b *ctxBlobs) Put(ctx context.Context, data []byte, ct string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	_, b.deadline = ctx.Deadline()
	return b.Store.Put(ctx, data, ct)
}

func TestStorageCallsIgnoreClientCancel(t *testing.T) {
	st := memstore.New()
	blobs := &ctxBlobs{Store: st}
	svc := panorama.NewService(&panorama.Backend{Records: st, Blobs: blobs}, panorama.Options{StorageTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Upload(ctx, panorama.UploadInput{Data: pngBytes(t), Filename: "a.png"}); err != nil {
		t.Fatalf("Upload with cancelled context: %v", err)
	}
	if !blobs.deadline {
		t.Error("storage call ran without a deadline")
	}
}
