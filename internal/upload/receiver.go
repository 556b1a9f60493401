package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/bright/uploader/internal/metrics"
	"github.com/bright/uploader/internal/storage"
)

// sniffLen is how many leading bytes are inspected to detect the real content type.
const sniffLen = 3072

// Files yields uploaded file streams one at a time. Next returns io.EOF when
// there are no more files.
type Files interface {
	Next() (io.Reader, error)
}

type multipartFiles struct {
	mr *multipart.Reader
}

// MultipartFiles yields every file part of a multipart body, skipping plain form fields.
func MultipartFiles(mr *multipart.Reader) Files {
	return &multipartFiles{mr: mr}
}

func (m *multipartFiles) Next() (io.Reader, error) {
	for {
		part, err := m.mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FileName() == "" {
			part.Close()
			continue
		}
		return part, nil
	}
}

type bodyFile struct {
	r    io.Reader
	done bool
}

// BodyFile yields a raw request body as a single file. A nil reader yields nothing.
func BodyFile(r io.Reader) Files {
	return &bodyFile{r: r}
}

func (b *bodyFile) Next() (io.Reader, error) {
	if b.done || b.r == nil {
		return nil, io.EOF
	}
	b.done = true
	return b.r, nil
}

// Receiver persists files sent to a signed local upload URL. Callers must
// verify the URL signature before handing the request body to Receive.
type Receiver struct {
	disk    storage.Disk
	keys    *KeyGenerator
	types   ContentTypeResolver
	prefix  string
	ledger  Ledger
	metrics *metrics.Metrics
}

// NewReceiver creates a Receiver storing into disk under prefix.
func NewReceiver(disk storage.Disk, keys *KeyGenerator, prefix string, ledger Ledger, m *metrics.Metrics) *Receiver {
	if ledger == nil {
		ledger = NopLedger{}
	}
	return &Receiver{disk: disk, keys: keys, prefix: prefix, ledger: ledger, metrics: m}
}

// Receive stores every file under prefix/key and returns the stored paths
// with the working prefix removed.
func (rc *Receiver) Receive(ctx context.Context, key string, files Files) ([]string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}
	if err := rc.keys.ValidateKey(key); err != nil {
		return nil, err
	}

	path := storage.Join(rc.prefix, key)
	contentType := rc.types.Resolve(extensionOf(key), "")

	paths := []string{}
	var detected string
	for {
		f, err := files.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if isTooLarge(err) {
				return nil, ErrTooLarge
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformedUpload, err)
		}

		head := make([]byte, sniffLen)
		n, err := io.ReadFull(f, head)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			if isTooLarge(err) {
				return nil, ErrTooLarge
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformedUpload, err)
		}
		head = head[:n]
		detected = mimetype.Detect(head).String()

		stored, err := rc.disk.Store(ctx, path, io.MultiReader(bytes.NewReader(head), f), -1, contentType)
		if err != nil {
			if isTooLarge(err) {
				return nil, ErrTooLarge
			}
			rc.metrics.BackendFailure("store")
			return nil, &BackendError{Op: "store", Backend: rc.disk.Name(), Key: key, Err: err}
		}
		paths = append(paths, storage.StripPrefix(rc.prefix, stored))
	}

	if len(paths) > 0 {
		if err := rc.ledger.Consumed(ctx, key, detected); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("ledger: record consumption failed")
		}
		rc.metrics.Received(rc.disk.Name(), len(paths))
		log.Ctx(ctx).Info().
			Str("key", key).
			Str("disk", rc.disk.Name()).
			Str("detected_type", detected).
			Int("files", len(paths)).
			Msg("upload received")
	}
	return paths, nil
}

func extensionOf(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '.' {
			return key[i+1:]
		}
	}
	return ""
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
