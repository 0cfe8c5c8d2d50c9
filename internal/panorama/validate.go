package panorama

import (
	"bytes"
	"image"
	"strings"

	"github.com/google/uuid"

	// Header decoders for DecodeConfig. The extension check, not the
	// content, decides which formats are accepted.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// MaxUploadBytes is the largest accepted image payload.
const MaxUploadBytes = 50 << 20

var allowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
}

// AllowedExtension reports whether the text after the last dot of
// filename is an accepted image extension, ignoring case.
func AllowedExtension(filename string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return false
	}
	_, ok := allowedExtensions[strings.ToLower(filename[i+1:])]
	return ok
}

// ValidateImage checks that data parses as an image header with
// non-zero dimensions. Pixel data is not decoded.
func ValidateImage(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ErrInvalidImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ErrInvalidImage
	}
	return nil
}

// ParseID parses a client-supplied identifier.
func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidID
	}
	return id, nil
}
