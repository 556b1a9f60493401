package upload

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bright/uploader/internal/storage"
)

// DefaultVisibility is the ACL applied when neither the request nor the
// configuration names an allowed one.
const DefaultVisibility = "private"

var cannedACLs = map[string]struct{}{
	"private":                   {},
	"public-read":               {},
	"public-read-write":         {},
	"authenticated-read":        {},
	"bucket-owner-read":         {},
	"bucket-owner-full-control": {},
}

// CloudAuthorizer issues presigned object-store PUT requests.
type CloudAuthorizer struct {
	keys       *KeyGenerator
	types      ContentTypeResolver
	presigner  storage.Presigner
	bucket     string
	prefix     string
	defaultACL string
	ttl        time.Duration
	now        func() time.Time
}

// NewCloudAuthorizer creates a CloudAuthorizer writing into bucket under prefix.
func NewCloudAuthorizer(keys *KeyGenerator, p storage.Presigner, bucket, prefix, defaultACL string, ttl time.Duration) *CloudAuthorizer {
	if _, ok := cannedACLs[defaultACL]; !ok {
		defaultACL = DefaultVisibility
	}
	return &CloudAuthorizer{
		keys:       keys,
		presigner:  p,
		bucket:     bucket,
		prefix:     prefix,
		defaultACL: defaultACL,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Authorize implements the cloud branch of Router.Issue.
func (a *CloudAuthorizer) Authorize(ctx context.Context, req Request) (*Authorization, error) {
	key, err := a.keys.Generate(req.Extension)
	if err != nil {
		return nil, err
	}

	cmd, err := a.command(req, key)
	if err != nil {
		return nil, err
	}

	expiresAt := a.now().Add(a.ttl)
	signed, err := a.presigner.PresignPut(ctx, cmd, a.ttl)
	if err != nil {
		return nil, &BackendError{Op: "presign", Backend: BackendCloud.String(), Key: cmd.Key, Err: err}
	}

	headers := make(map[string]string, len(signed.Headers)+1)
	for name, values := range signed.Headers {
		if strings.EqualFold(name, "Host") {
			continue
		}
		headers[http.CanonicalHeaderKey(name)] = strings.Join(values, ",")
	}
	headers["Content-Type"] = cmd.ContentType

	return &Authorization{
		Key:     key,
		Backend: BackendCloud,
		Headers: headers,
		Attributes: Attributes{
			Action:    signed.URL,
			Name:      key,
			Extension: extensionOf(key),
		},
		Inputs:    map[string]string{},
		ExpiresAt: expiresAt,
	}, nil
}

// command builds the minimal PUT for key: optional headers stay nil unless
// the caller supplied them.
func (a *CloudAuthorizer) command(req Request, key string) (storage.PutCommand, error) {
	cmd := storage.PutCommand{
		Bucket:      a.bucket,
		Key:         storage.Join(a.prefix, key),
		ACL:         a.acl(req.Visibility),
		ContentType: a.types.Resolve(extensionOf(key), req.ContentType),
	}
	if req.CacheControl != "" {
		cc := req.CacheControl
		cmd.CacheControl = &cc
	}
	if req.Expires != "" {
		t, err := parseExpires(req.Expires)
		if err != nil {
			return storage.PutCommand{}, err
		}
		cmd.Expires = &t
	}
	return cmd, nil
}

func (a *CloudAuthorizer) acl(visibility string) string {
	if _, ok := cannedACLs[visibility]; ok {
		return visibility
	}
	return a.defaultACL
}

func parseExpires(v string) (time.Time, error) {
	if t, err := http.ParseTime(v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Time{}, ErrInvalidExpires
}
