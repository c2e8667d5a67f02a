// Package auth provides access tokens for requests to the sync server.
// Token issuance and refresh belong to the host application.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned when the access token is past its exp claim
var ErrTokenExpired = errors.New("access token expired")

// TokenSource returns the bearer token for the next request.
// An empty token means the request is sent without Authorization header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken отдает один и тот же токен, проверяя срок действия перед каждым запросом
type StaticToken struct {
	now   func() time.Time
	token string
}

var _ TokenSource = (*StaticToken)(nil)

// NewStaticToken creates a token source for a fixed token
func NewStaticToken(token string) *StaticToken {
	return &StaticToken{token: token, now: time.Now}
}

// Token returns the configured token or ErrTokenExpired
func (s *StaticToken) Token(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", nil
	}
	if err := CheckExpiry(s.token, s.now()); err != nil {
		return "", err
	}
	return s.token, nil
}

// CheckExpiry reads the exp claim without verifying the signature.
// Opaque (non-JWT) tokens and tokens without exp are never reported expired;
// the server stays the authority on validity.
func CheckExpiry(token string, now time.Time) error {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		// Не JWT - проверять нечего
		return nil
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp == nil {
		return nil
	}

	if !now.Before(exp.Time) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, exp.Time.UTC().Format(time.RFC3339))
	}

	return nil
}
