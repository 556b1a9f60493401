// Package signer issues and verifies temporary signed routes.
//
// A signed route is a service path plus two query parameters: "expires"
// (unix seconds) and "signature", an HS256 token whose subject is the path and
// whose exp claim equals "expires". Verification needs no stored state.
package signer

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ParamExpires   = "expires"
	ParamSignature = "signature"
)

// ErrSignatureMissing is returned when a request carries no signature.
var ErrSignatureMissing = errors.New("signature missing")

// ErrSignatureInvalid is returned when a signature is malformed, forged or
// does not cover the requested route.
var ErrSignatureInvalid = errors.New("invalid signature")

// ErrSignatureExpired is returned when a signature was valid but its expiry has passed.
var ErrSignatureExpired = errors.New("signature expired")

// Signer signs and verifies routes with a server-side secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// New creates a Signer keyed with secret.
func New(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// WithClock returns a copy of the Signer that reads the current time from now.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	return &Signer{secret: s.secret, now: now}
}

// Now returns the signer's notion of the current time.
func (s *Signer) Now() time.Time {
	return s.now()
}

// Sign returns route with the expiry and signature query parameters appended.
func (s *Signer) Sign(route string, expiresAt time.Time) (string, error) {
	exp := expiresAt.Truncate(time.Second)
	claims := jwt.RegisteredClaims{
		Subject:   route,
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign route: %w", err)
	}

	q := url.Values{}
	q.Set(ParamExpires, strconv.FormatInt(exp.Unix(), 10))
	q.Set(ParamSignature, token)
	return route + "?" + q.Encode(), nil
}

// Verify checks that query carries a current signature issued for path.
func (s *Signer) Verify(path string, query url.Values) error {
	raw := query.Get(ParamSignature)
	if raw == "" {
		return ErrSignatureMissing
	}

	expires, err := strconv.ParseInt(query.Get(ParamExpires), 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrSignatureExpired
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	if claims.Subject != path || claims.ExpiresAt.Unix() != expires {
		return ErrSignatureInvalid
	}
	return nil
}

// IsSignatureError reports whether err is one of the package's rejection errors.
func IsSignatureError(err error) bool {
	return errors.Is(err, ErrSignatureMissing) ||
		errors.Is(err, ErrSignatureInvalid) ||
		errors.Is(err, ErrSignatureExpired)
}
