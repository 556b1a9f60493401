package upload

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bright/uploader/internal/storage"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)

const testKey = "0b9f2c1e-4f9a-4b8e-9a55-9d0c1a2b3c4d.png"

func multipartBody(t *testing.T, fields map[string]string, files ...[]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for i, f := range files {
		part, err := w.CreateFormFile("file", strings.Repeat("f", i+1)+".png")
		require.NoError(t, err)
		_, err = part.Write(f)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.Boundary()
}

func TestReceiveMultipart(t *testing.T) {
	disk := newMemDisk()
	ledger := newFakeLedger()
	rc := NewReceiver(disk, NewKeyGenerator(nil), "tmp", ledger, nil)

	body, boundary := multipartBody(t, map[string]string{"note": "ignored"}, pngBytes)
	paths, err := rc.Receive(context.Background(), testKey, MultipartFiles(multipart.NewReader(body, boundary)))
	require.NoError(t, err)

	assert.Equal(t, []string{testKey}, paths)
	stored, ok := disk.get("tmp/" + testKey)
	require.True(t, ok)
	assert.Equal(t, pngBytes, stored)
	assert.Equal(t, "image/png", ledger.consumed[testKey])
}

func TestReceiveMultipleFilesShareKey(t *testing.T) {
	disk := newMemDisk()
	rc := NewReceiver(disk, NewKeyGenerator(nil), "tmp", nil, nil)

	body, boundary := multipartBody(t, nil, []byte("first"), []byte("second"))
	paths, err := rc.Receive(context.Background(), testKey, MultipartFiles(multipart.NewReader(body, boundary)))
	require.NoError(t, err)

	assert.Equal(t, []string{testKey, testKey}, paths)
	stored, _ := disk.get("tmp/" + testKey)
	assert.Equal(t, "second", string(stored))
}

func TestReceiveRawBody(t *testing.T) {
	disk := newMemDisk()
	rc := NewReceiver(disk, NewKeyGenerator(nil), "tmp", nil, nil)

	paths, err := rc.Receive(context.Background(), testKey, BodyFile(bytes.NewReader(pngBytes)))
	require.NoError(t, err)
	assert.Equal(t, []string{testKey}, paths)

	paths, err = rc.Receive(context.Background(), testKey, BodyFile(nil))
	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.Equal(t, 1, disk.stores)
}

func TestReceiveRejectsBadKeys(t *testing.T) {
	disk := newMemDisk()
	rc := NewReceiver(disk, NewKeyGenerator([]string{"png"}), "tmp", nil, nil)

	for _, key := range []string{"", "../escape.png", "a/b.png", "evil.exe"} {
		_, err := rc.Receive(context.Background(), key, BodyFile(strings.NewReader("x")))
		assert.True(t, IsValidationError(err), key)
	}
	assert.Zero(t, disk.stores)
}

func TestReceiveBackendFailure(t *testing.T) {
	disk := newMemDisk()
	disk.storeErr = errBackendDown
	rc := NewReceiver(disk, NewKeyGenerator(nil), "tmp", nil, nil)

	_, err := rc.Receive(context.Background(), testKey, BodyFile(strings.NewReader("x")))

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "store", be.Op)
	assert.Equal(t, testKey, be.Key)
}

func TestReceiveTooLarge(t *testing.T) {
	rec := httptest.NewRecorder()
	body := http.MaxBytesReader(rec, io.NopCloser(bytes.NewReader(bytes.Repeat([]byte("a"), 8192))), 4096)
	rc := NewReceiver(newMemDisk(), NewKeyGenerator(nil), "tmp", nil, nil)

	_, err := rc.Receive(context.Background(), testKey, BodyFile(body))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestReceiveLocalDiskStripsPrefix(t *testing.T) {
	disk, err := storage.NewLocalDisk(t.TempDir())
	require.NoError(t, err)
	rc := NewReceiver(disk, NewKeyGenerator(nil), "tmp", nil, nil)

	paths, err := rc.Receive(context.Background(), testKey, BodyFile(bytes.NewReader(pngBytes)))
	require.NoError(t, err)
	assert.Equal(t, []string{testKey}, paths)

	ok, err := disk.Exists(context.Background(), "tmp/"+testKey)
	require.NoError(t, err)
	assert.True(t, ok)
}
