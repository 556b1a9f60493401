package upload

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/bright/uploader/internal/metrics"
)

// Router is the single entry point for issuing authorizations. It picks the
// authorizer for the configured backend; clients only ever see the result's
// disk field.
type Router struct {
	backend Backend
	local   *LocalAuthorizer
	cloud   *CloudAuthorizer
	ledger  Ledger
	metrics *metrics.Metrics
}

// NewRouter creates a Router. cloud may be nil when backend is BackendLocal.
func NewRouter(backend Backend, local *LocalAuthorizer, cloud *CloudAuthorizer, ledger Ledger, m *metrics.Metrics) *Router {
	if ledger == nil {
		ledger = NopLedger{}
	}
	return &Router{backend: backend, local: local, cloud: cloud, ledger: ledger, metrics: m}
}

// Backend returns the backend authorizations are issued for.
func (r *Router) Backend() Backend { return r.backend }

// Issue creates an authorization on the configured backend.
func (r *Router) Issue(ctx context.Context, req Request) (*Authorization, error) {
	var (
		auth *Authorization
		err  error
	)
	switch r.backend {
	case BackendCloud:
		if r.cloud == nil {
			return nil, errors.New("cloud backend is not configured")
		}
		auth, err = r.cloud.Authorize(ctx, req)
	default:
		auth, err = r.local.Authorize(ctx, req)
	}
	if err != nil {
		var be *BackendError
		if errors.As(err, &be) {
			r.metrics.BackendFailure(be.Op)
		}
		return nil, err
	}

	if err := r.ledger.Issued(ctx, auth); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", auth.Key).Msg("ledger: record issuance failed")
	}
	r.metrics.Issued(auth.Backend.String())

	log.Ctx(ctx).Debug().
		Str("key", auth.Key).
		Str("disk", auth.Backend.String()).
		Time("expires_at", auth.ExpiresAt).
		Msg("upload authorization issued")
	return auth, nil
}
