package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveKnownExtensions(t *testing.T) {
	var r ContentTypeResolver

	for ext, want := range mimeTypes {
		assert.Equal(t, want, r.Resolve(ext, ""), ext)
	}
	assert.Equal(t, "image/png", r.Resolve("PNG", ""))
	assert.Equal(t, "image/jpeg", r.Resolve(".jpg", ""))
}

func TestResolveFallsBackForUnknown(t *testing.T) {
	var r ContentTypeResolver

	for _, ext := range []string{"", "xyz", "heif2", "../png"} {
		assert.Equal(t, DefaultContentType, r.Resolve(ext, ""), ext)
	}
}

func TestResolveExplicitWins(t *testing.T) {
	var r ContentTypeResolver

	assert.Equal(t, "image/x-custom", r.Resolve("png", "image/x-custom"))
	assert.Equal(t, "text/plain", r.Resolve("unknown", "text/plain"))
}
