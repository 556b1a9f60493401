package upload

import (
	"errors"
	"fmt"

	"github.com/bright/uploader/internal/storage"
)

// ErrInvalidExtension is returned when an extension is malformed or not allow-listed.
var ErrInvalidExtension = errors.New("extension not allowed")

// ErrInvalidPrefix is returned when a route prefix is not a single safe path segment.
var ErrInvalidPrefix = errors.New("invalid route prefix")

// ErrInvalidExpires is returned when the expires input cannot be parsed as a date.
var ErrInvalidExpires = errors.New("invalid expires value")

// ErrTooLarge is returned when an upload exceeds the configured size limit.
var ErrTooLarge = errors.New("upload too large")

// ErrMalformedUpload is returned when the upload body cannot be read as files.
var ErrMalformedUpload = errors.New("malformed upload body")

// BackendError reports a failed call to a storage disk or the presigner.
type BackendError struct {
	Op      string
	Backend string
	Key     string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s on %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsValidationError reports whether err was caused by bad client input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidExtension) ||
		errors.Is(err, ErrInvalidPrefix) ||
		errors.Is(err, ErrInvalidExpires) ||
		errors.Is(err, ErrMalformedUpload) ||
		errors.Is(err, storage.ErrInvalidKey)
}
