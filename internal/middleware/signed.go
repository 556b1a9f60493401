package middleware

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/bright/uploader/internal/metrics"
	"github.com/bright/uploader/internal/response"
	"github.com/bright/uploader/internal/signer"
)

// RequireSignedRoute rejects requests whose URL does not carry a current
// signature for its own path. The check runs before the body is read, so an
// unsigned request never reaches storage.
func RequireSignedRoute(s *signer.Signer, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := s.Verify(r.URL.Path, r.URL.Query()); err != nil {
				reason := "invalid"
				switch {
				case errors.Is(err, signer.ErrSignatureMissing):
					reason = "missing"
				case errors.Is(err, signer.ErrSignatureExpired):
					reason = "expired"
				}
				m.Rejected(reason)
				log.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("signed route rejected")

				response.Unauthorized(w, "invalid signature")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
