package upload

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/bright/uploader/internal/signer"
)

var prefixPattern = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

// FilesRoute is the path segment under which signed local uploads are received.
const FilesRoute = "/upload/files/"

// RoutePath returns the service path a local upload of key is sent to.
func RoutePath(prefix, key string) string {
	if prefix == "" {
		return FilesRoute + key
	}
	return "/" + prefix + FilesRoute + key
}

// LocalAuthorizer issues signed URLs pointing at the service's own upload endpoint.
type LocalAuthorizer struct {
	keys    *KeyGenerator
	types   ContentTypeResolver
	signer  *signer.Signer
	baseURL string
	ttl     time.Duration
}

// NewLocalAuthorizer creates a LocalAuthorizer whose URLs start with baseURL.
func NewLocalAuthorizer(keys *KeyGenerator, s *signer.Signer, baseURL string, ttl time.Duration) *LocalAuthorizer {
	return &LocalAuthorizer{
		keys:    keys,
		signer:  s,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
	}
}

// Authorize implements the local branch of Router.Issue.
func (a *LocalAuthorizer) Authorize(_ context.Context, req Request) (*Authorization, error) {
	prefix := strings.Trim(req.Prefix, "/")
	if prefix != "" && !prefixPattern.MatchString(prefix) {
		return nil, ErrInvalidPrefix
	}

	key, err := a.keys.Generate(req.Extension)
	if err != nil {
		return nil, err
	}

	expiresAt := a.signer.Now().Add(a.ttl).Truncate(time.Second)
	signed, err := a.signer.Sign(RoutePath(prefix, key), expiresAt)
	if err != nil {
		return nil, err
	}
	action := a.baseURL + signed

	return &Authorization{
		Key:     key,
		Backend: BackendLocal,
		Headers: map[string]string{
			"Content-Type": a.types.Resolve(extensionOf(key), req.ContentType),
		},
		Attributes: Attributes{
			Action:    action,
			Name:      key,
			Extension: extensionOf(key),
		},
		Inputs:    req.inputs(),
		ExpiresAt: expiresAt,
	}, nil
}
