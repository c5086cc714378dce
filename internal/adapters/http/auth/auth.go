// Package auth issues and verifies the bearer tokens that carry a caller
// identity. Tokens are HS256 JWTs whose subject is the identity.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/okian/talentboard/internal/domain/model"
)

const issuer = "talentboard"

// Authentication failures.
var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrBadSubject   = errors.New("token subject is not an identity")
)

// IssueToken signs a token for caller valid for ttl from now.
func IssueToken(secret []byte, caller model.Identity, ttl time.Duration, now time.Time) (string, error) {
	if caller.IsZero() {
		return "", model.ErrInvalidIdentity
	}
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   caller.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verifier checks tokens signed with one secret.
type Verifier struct {
	secret      []byte
	now         func() time.Time
	maxLifetime time.Duration
}

// NewVerifier returns a Verifier for secret.
func NewVerifier(secret []byte, opts ...Option) *Verifier {
	v := &Verifier{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock sets the clock expiry is judged against.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithMaxLifetime rejects tokens whose expiry lies more than d after their
// issue time. Zero disables the check.
func WithMaxLifetime(d time.Duration) Option {
	return func(v *Verifier) { v.maxLifetime = d }
}

// Verify parses an Authorization header value and returns the caller.
func (v *Verifier) Verify(header string) (model.Identity, error) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", ErrMissingToken
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return "", fmt.Errorf("%w: no expiry", ErrInvalidToken)
	}
	if v.maxLifetime > 0 {
		if claims.IssuedAt == nil || claims.ExpiresAt.Sub(claims.IssuedAt.Time) > v.maxLifetime {
			return "", fmt.Errorf("%w: lifetime exceeds %s", ErrInvalidToken, v.maxLifetime)
		}
	}

	caller, err := model.ParseIdentity(claims.Subject)
	if err != nil {
		return "", ErrBadSubject
	}
	return caller, nil
}
