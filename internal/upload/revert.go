package upload

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/bright/uploader/internal/metrics"
	"github.com/bright/uploader/internal/storage"
)

// Reverter discards uploaded but uncommitted objects.
type Reverter struct {
	disk    storage.Disk
	prefix  string
	ledger  Ledger
	metrics *metrics.Metrics
}

// NewReverter creates a Reverter deleting from disk under prefix.
func NewReverter(disk storage.Disk, prefix string, ledger Ledger, m *metrics.Metrics) *Reverter {
	if ledger == nil {
		ledger = NopLedger{}
	}
	return &Reverter{disk: disk, prefix: prefix, ledger: ledger, metrics: m}
}

// Revert deletes prefix/filename if present. A missing object is not an
// error, so Revert may be called any number of times for the same key.
func (v *Reverter) Revert(ctx context.Context, filename string) error {
	if err := storage.ValidateKey(filename); err != nil {
		return err
	}
	path := storage.Join(v.prefix, filename)

	exists, err := v.disk.Exists(ctx, path)
	if err != nil {
		v.metrics.BackendFailure("exists")
		return &BackendError{Op: "exists", Backend: v.disk.Name(), Key: filename, Err: err}
	}
	if exists {
		if err := v.disk.Delete(ctx, path); err != nil {
			v.metrics.BackendFailure("delete")
			return &BackendError{Op: "delete", Backend: v.disk.Name(), Key: filename, Err: err}
		}
	}

	if err := v.ledger.Reverted(ctx, filename); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", filename).Msg("ledger: record revert failed")
	}
	v.metrics.Reverted(exists)

	log.Ctx(ctx).Debug().Str("key", filename).Bool("deleted", exists).Msg("upload reverted")
	return nil
}
