package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bright/uploader/internal/metrics"
	appMiddleware "github.com/bright/uploader/internal/middleware"
	"github.com/bright/uploader/internal/signer"
	"github.com/bright/uploader/internal/storage"
)

type testServer struct {
	handler http.Handler
	disk    storage.Disk
	ledger  *fakeLedger
	clock   *time.Time
}

func newTestServer(t *testing.T, backend Backend, disk storage.Disk, presigner *fakePresigner) *testServer {
	t.Helper()
	clock := testNow
	s := signer.New("test-secret").WithClock(func() time.Time { return clock })
	m := metrics.New(prometheus.NewRegistry())
	keys := NewKeyGenerator(nil)
	ledger := newFakeLedger()

	local := NewLocalAuthorizer(keys, s, "http://files.test", time.Minute)
	var cloud *CloudAuthorizer
	if presigner != nil {
		cloud = NewCloudAuthorizer(keys, presigner, "uploads", "tmp", "private", time.Minute)
	}
	h := NewHandler(
		NewRouter(backend, local, cloud, ledger, m),
		NewReceiver(disk, keys, "tmp", ledger, m),
		NewReverter(disk, "tmp", ledger, m),
		1<<20,
	)

	r := chi.NewRouter()
	r.Route("/api/v1/uploads", func(r chi.Router) {
		r.Post("/signed", h.Signed)
		r.Post("/revert", h.Revert)
		r.Delete("/revert", h.Revert)
	})
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.RequireSignedRoute(s, m))
		r.Post("/upload/files/{file}", h.Upload)
		r.Put("/upload/files/{file}", h.Upload)
		r.Post("/{scope}/upload/files/{file}", h.Upload)
	})

	return &testServer{handler: r, disk: disk, ledger: ledger, clock: &clock}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) issue(t *testing.T, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/signed", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(t, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func multipartUpload(t *testing.T, method, action string, content []byte) *http.Request {
	t.Helper()
	body, boundary := multipartBody(t, nil, content)
	req := httptest.NewRequest(method, action, body)
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	return req
}

func TestLocalEndToEnd(t *testing.T) {
	disk, err := storage.NewLocalDisk(t.TempDir())
	require.NoError(t, err)
	ts := newTestServer(t, BackendLocal, disk, nil)

	rec, out := ts.issue(t, `{"extension":"png"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, "local", out["disk"])
	headers := out["headers"].(map[string]any)
	assert.Equal(t, "image/png", headers["Content-Type"])
	attrs := out["attributes"].(map[string]any)
	name := attrs["name"].(string)
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.Equal(t, out["key"], name)
	assert.Equal(t, map[string]any{"extension": "png"}, out["inputs"])

	action := attrs["action"].(string)
	rec = ts.do(t, multipartUpload(t, http.MethodPost, action, pngBytes))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"paths":["`+name+`"]}`, rec.Body.String())

	ok, err := disk.Exists(context.Background(), "tmp/"+name)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "image/png", ts.ledger.consumed[name])
}

func TestLocalRawPut(t *testing.T) {
	disk := newMemDisk()
	ts := newTestServer(t, BackendLocal, disk, nil)

	_, out := ts.issue(t, `{"extension":"png"}`)
	attrs := out["attributes"].(map[string]any)

	req := httptest.NewRequest(http.MethodPut, attrs["action"].(string), bytes.NewReader(pngBytes))
	req.Header.Set("Content-Type", "image/png")
	rec := ts.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored, ok := disk.get("tmp/" + attrs["name"].(string))
	require.True(t, ok)
	assert.Equal(t, pngBytes, stored)
}

func TestLocalPrefixedRoute(t *testing.T) {
	disk := newMemDisk()
	ts := newTestServer(t, BackendLocal, disk, nil)

	rec, out := ts.issue(t, `{"extension":"pdf","prefix":"admin"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	attrs := out["attributes"].(map[string]any)

	u, err := url.Parse(attrs["action"].(string))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.Path, "/admin/upload/files/"))

	rec = ts.do(t, multipartUpload(t, http.MethodPost, attrs["action"].(string), []byte("%PDF-1.7")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestUploadAfterExpiryRejected(t *testing.T) {
	disk := newMemDisk()
	ts := newTestServer(t, BackendLocal, disk, nil)

	_, out := ts.issue(t, `{"extension":"png"}`)
	action := out["attributes"].(map[string]any)["action"].(string)

	*ts.clock = testNow.Add(61 * time.Second)
	rec := ts.do(t, multipartUpload(t, http.MethodPost, action, pngBytes))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, disk.stores, "storage untouched when the signature is rejected")
}

func TestUploadSignatureChecks(t *testing.T) {
	disk := newMemDisk()
	ts := newTestServer(t, BackendLocal, disk, nil)

	_, out := ts.issue(t, `{"extension":"png"}`)
	action := out["attributes"].(map[string]any)["action"].(string)
	u, err := url.Parse(action)
	require.NoError(t, err)

	unsigned := "http://files.test" + u.Path
	rec := ts.do(t, multipartUpload(t, http.MethodPost, unsigned, pngBytes))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	swapped := strings.Replace(action, out["key"].(string), testKey, 1)
	rec = ts.do(t, multipartUpload(t, http.MethodPost, swapped, pngBytes))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Zero(t, disk.stores)
}

func TestSignedValidation(t *testing.T) {
	ts := newTestServer(t, BackendLocal, newMemDisk(), nil)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing extension", `{}`},
		{"traversal extension", `{"extension":"../../etc/passwd"}`},
		{"disallowed extension", `{"extension":"exe"}`},
		{"bad prefix", `{"extension":"png","prefix":"a/b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/signed", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := ts.do(t, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSignedFromForm(t *testing.T) {
	ts := newTestServer(t, BackendLocal, newMemDisk(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/signed?extension=jpg", nil)
	rec := ts.do(t, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Content-Type":"image/jpeg"`)
}

func TestCloudEndToEnd(t *testing.T) {
	p := &fakePresigner{}
	ts := newTestServer(t, BackendCloud, newMemDisk(), p)

	rec, out := ts.issue(t, `{"extension":"jpg","visibility":"public-read"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, "s3", out["disk"])
	headers := out["headers"].(map[string]any)
	assert.Equal(t, "public-read", headers["X-Amz-Acl"])
	assert.Equal(t, "image/jpeg", headers["Content-Type"])
	assert.Contains(t, out["attributes"].(map[string]any)["action"], "X-Amz-Signature=")
	assert.Equal(t, map[string]any{}, out["inputs"])
	assert.Equal(t, "public-read", p.last().ACL)
}

func TestCloudPresignFailureIsBadGateway(t *testing.T) {
	ts := newTestServer(t, BackendCloud, newMemDisk(), &fakePresigner{err: errBackendDown})

	rec, _ := ts.issue(t, `{"extension":"jpg"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRevertEndpoint(t *testing.T) {
	disk := newMemDisk()
	disk.objects["tmp/"+testKey] = []byte("x")
	ts := newTestServer(t, BackendLocal, disk, nil)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/uploads/revert", strings.NewReader(`{"filename":"`+testKey+`"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := ts.do(t, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"OK"}`, rec.Body.String())
	}
	assert.Equal(t, 1, disk.deletes)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/revert", strings.NewReader("filename=never-uploaded.png"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := ts.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"OK"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/v1/uploads/revert", strings.NewReader(`{"filename":"../../etc/passwd"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = ts.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
