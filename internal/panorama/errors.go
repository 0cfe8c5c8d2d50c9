package panorama

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for translation into a transport status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindUnavailable
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

// Error is the error type returned by every Service operation.
// Two Errors match under errors.Is when their codes are equal, so a
// wrapped storage failure still matches ErrStorage.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrMissingFile        = &Error{Kind: KindValidation, Code: "missing_file", Message: "no file uploaded"}
	ErrEmptyFilename      = &Error{Kind: KindValidation, Code: "empty_filename", Message: "filename must not be empty"}
	ErrUnsupportedFormat  = &Error{Kind: KindValidation, Code: "unsupported_format", Message: "unsupported file format, use one of: jpg, jpeg, png, webp"}
	ErrPayloadTooLarge    = &Error{Kind: KindValidation, Code: "payload_too_large", Message: "file too large, maximum is 50MB"}
	ErrInvalidImage       = &Error{Kind: KindValidation, Code: "invalid_image", Message: "invalid image file"}
	ErrInvalidID          = &Error{Kind: KindValidation, Code: "invalid_id", Message: "invalid id"}
	ErrInvalidRequest     = &Error{Kind: KindValidation, Code: "invalid_request", Message: "invalid request data"}
	ErrFieldTooLong       = &Error{Kind: KindValidation, Code: "field_too_long", Message: "form field too long, maximum is 64KB"}
	ErrNoFieldsToUpdate   = &Error{Kind: KindValidation, Code: "no_fields_to_update", Message: "no fields to update"}
	ErrMissingTitle       = &Error{Kind: KindValidation, Code: "missing_title", Message: "title is required"}
	ErrUnknownPanorama    = &Error{Kind: KindValidation, Code: "unknown_panorama", Message: "album references a panorama that does not exist"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Code: "unauthorized", Message: "unauthorized"}
	ErrNotFound           = &Error{Kind: KindNotFound, Code: "not_found", Message: "not found"}
	ErrStorageUnavailable = &Error{Kind: KindUnavailable, Code: "storage_unavailable", Message: "database not initialised"}
	ErrStorage            = &Error{Kind: KindStorage, Code: "storage_error", Message: "storage error"}
)

// ErrNoRecord is returned by store implementations when a lookup matches
// nothing. The service translates it to ErrNotFound.
var ErrNoRecord = errors.New("panorama: no such record")

// storageError wraps a failed storage call so that it matches ErrStorage
// while keeping the cause for logging.
func storageError(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{
		Kind:    KindStorage,
		Code:    ErrStorage.Code,
		Message: ErrStorage.Message,
		Err:     fmt.Errorf("%s: %w", op, err),
	}
}

// KindOf reports the Kind of err, or KindInternal for errors that did not
// originate in this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Public returns the code and message safe to show a client. Causes are
// never included.
func Public(err error) (code, message string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, e.Message
	}
	return "internal_error", "internal server error"
}
