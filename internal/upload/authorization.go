// Package upload issues signed upload authorizations, receives direct-to-disk
// uploads and discards uncommitted ones.
package upload

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bright/uploader/internal/config"
)

// Backend is the closed set of upload targets.
type Backend int

const (
	BackendLocal Backend = iota
	BackendCloud
)

// String returns the disk name clients see ("local" or "s3").
func (b Backend) String() string {
	if b == BackendCloud {
		return string(config.DiskS3)
	}
	return string(config.DiskLocal)
}

func (b Backend) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// BackendFor maps a configured disk onto a Backend.
func BackendFor(disk config.Disk) (Backend, error) {
	switch disk {
	case config.DiskLocal:
		return BackendLocal, nil
	case config.DiskS3:
		return BackendCloud, nil
	}
	return 0, fmt.Errorf("unknown disk %q", disk)
}

// Request is the client's ask for an upload authorization.
type Request struct {
	Extension    string `json:"extension"               example:"png"`
	Prefix       string `json:"prefix,omitempty"        example:"admin"`
	ContentType  string `json:"content_type,omitempty"  example:"image/png"`
	Visibility   string `json:"visibility,omitempty"    example:"public-read"`
	CacheControl string `json:"cache_control,omitempty" example:"max-age=31536000"`
	Expires      string `json:"expires,omitempty"       example:"Wed, 21 Oct 2026 07:28:00 GMT"`
}

// inputs echoes the non-empty request fields back to the client.
func (r Request) inputs() map[string]string {
	in := map[string]string{}
	for k, v := range map[string]string{
		"extension":     r.Extension,
		"prefix":        r.Prefix,
		"content_type":  r.ContentType,
		"visibility":    r.Visibility,
		"cache_control": r.CacheControl,
		"expires":       r.Expires,
	} {
		if v != "" {
			in[k] = v
		}
	}
	return in
}

// Attributes carry what the client needs to perform and track the upload.
type Attributes struct {
	Action    string `json:"action"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
}

// Authorization is a time-limited credential for one direct upload.
type Authorization struct {
	Key        string            `json:"key"`
	Backend    Backend           `json:"disk"        swaggertype:"string" enums:"local,s3"`
	Headers    map[string]string `json:"headers"`
	Attributes Attributes        `json:"attributes"`
	Inputs     map[string]string `json:"inputs"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// Action is the absolute URL the client must send the bytes to.
func (a *Authorization) Action() string {
	return a.Attributes.Action
}
