// Package storage abstracts the disks uploads are written to and the
// object-store presigner used for direct-to-bucket uploads.
// The local disk serves development and single-node deployments; the MinIO
// disk works with any S3-compatible provider (MinIO, AWS S3, ArvanCloud).
package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidKey is returned when a key could escape the working prefix.
var ErrInvalidKey = errors.New("invalid storage key")

// Disk is the interface for persisting and discarding uploaded objects.
type Disk interface {
	// Name identifies the disk in logs and responses ("local", "s3").
	Name() string
	// Exists reports whether an object is present at path.
	Exists(ctx context.Context, path string) (bool, error)
	// Delete removes the object at path. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error
	// Store streams r to path and returns the stored path.
	// size may be -1 when unknown.
	Store(ctx context.Context, path string, r io.Reader, size int64, contentType string) (string, error)
}

// PutCommand describes a single PUT of one object. Optional headers are nil
// when the caller did not supply them and must not be sent.
type PutCommand struct {
	Bucket       string
	Key          string
	ACL          string
	ContentType  string
	CacheControl *string
	Expires      *time.Time
}

// PresignedRequest is a vendor-signed request description the client replays verbatim.
type PresignedRequest struct {
	URL     string
	Method  string
	Headers http.Header
}

// Presigner turns a PutCommand into a time-limited presigned request.
type Presigner interface {
	PresignPut(ctx context.Context, cmd PutCommand, ttl time.Duration) (*PresignedRequest, error)
}

// ValidateKey rejects keys that are empty, contain path separators or NUL
// bytes, or name the current or parent directory.
func ValidateKey(key string) error {
	switch {
	case key == "", key == ".", key == "..":
		return ErrInvalidKey
	case strings.ContainsAny(key, "/\\\x00"):
		return ErrInvalidKey
	}
	return nil
}

// Join builds the object path for key under prefix.
func Join(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// StripPrefix removes the working prefix from a stored path.
func StripPrefix(prefix, path string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return path
	}
	return strings.TrimPrefix(path, prefix+"/")
}
