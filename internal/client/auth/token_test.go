package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestCheckExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		token   string
		wantErr error
		anyErr  bool
	}{
		{
			name:  "valid token",
			token: signToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}),
		},
		{
			name:    "expired token",
			token:   signToken(t, jwt.MapClaims{"exp": now.Add(-time.Minute).Unix()}),
			wantErr: ErrTokenExpired,
		},
		{
			name:    "expires exactly now",
			token:   signToken(t, jwt.MapClaims{"exp": now.Unix()}),
			wantErr: ErrTokenExpired,
		},
		{
			name:  "no exp claim",
			token: signToken(t, jwt.MapClaims{"sub": "device-1"}),
		},
		{
			name:  "opaque token",
			token: "not-a-jwt",
		},
		{
			name:   "malformed exp",
			token:  signToken(t, jwt.MapClaims{"exp": "tomorrow"}),
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckExpiry(tt.token, now)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestStaticToken(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("empty token", func(t *testing.T) {
		token, err := NewStaticToken("").Token(ctx)
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("valid token is returned as is", func(t *testing.T) {
		raw := signToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
		src := NewStaticToken(raw)
		src.now = func() time.Time { return now }

		token, err := src.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, raw, token)
	})

	t.Run("expired token", func(t *testing.T) {
		src := NewStaticToken(signToken(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()}))
		src.now = func() time.Time { return now }

		token, err := src.Token(ctx)
		assert.ErrorIs(t, err, ErrTokenExpired)
		assert.Empty(t, token)
	})
}
