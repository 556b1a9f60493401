package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bright/uploader/internal/storage"
)

// memDisk is an in-memory storage.Disk that counts calls.
type memDisk struct {
	mu        sync.Mutex
	objects   map[string][]byte
	stores    int
	deletes   int
	existsErr error
	storeErr  error
}

func newMemDisk() *memDisk {
	return &memDisk{objects: map[string][]byte{}}
}

func (d *memDisk) Name() string { return "local" }

func (d *memDisk) Exists(_ context.Context, path string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.existsErr != nil {
		return false, d.existsErr
	}
	_, ok := d.objects[path]
	return ok, nil
}

func (d *memDisk) Delete(_ context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deletes++
	delete(d.objects, path)
	return nil
}

func (d *memDisk) Store(_ context.Context, path string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.storeErr != nil {
		return "", d.storeErr
	}
	d.stores++
	d.objects[path] = data
	return path, nil
}

func (d *memDisk) get(path string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.objects[path]
	return b, ok
}

// fakePresigner records the last command it was asked to sign.
type fakePresigner struct {
	mu   sync.Mutex
	cmds []storage.PutCommand
	ttl  time.Duration
	err  error
}

func (p *fakePresigner) PresignPut(_ context.Context, cmd storage.PutCommand, ttl time.Duration) (*storage.PresignedRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.cmds = append(p.cmds, cmd)
	p.ttl = ttl

	headers := http.Header{}
	headers.Set("Host", "uploads.s3.amazonaws.com")
	headers.Set("X-Amz-Acl", cmd.ACL)
	headers.Set("Content-Type", cmd.ContentType)
	return &storage.PresignedRequest{
		URL:     "https://uploads.s3.amazonaws.com/" + cmd.Key + "?X-Amz-Signature=abc",
		Method:  http.MethodPut,
		Headers: headers,
	}, nil
}

func (p *fakePresigner) last() storage.PutCommand {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmds[len(p.cmds)-1]
}

// fakeLedger records lifecycle events.
type fakeLedger struct {
	mu       sync.Mutex
	issued   []string
	consumed map[string]string
	reverted []string
	err      error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{consumed: map[string]string{}}
}

func (l *fakeLedger) Issued(_ context.Context, a *Authorization) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issued = append(l.issued, a.Key)
	return l.err
}

func (l *fakeLedger) Consumed(_ context.Context, key, detected string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consumed[key] = detected
	return l.err
}

func (l *fakeLedger) Reverted(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reverted = append(l.reverted, key)
	return l.err
}

var errBackendDown = errors.New("connection refused")
