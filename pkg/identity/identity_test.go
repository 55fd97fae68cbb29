package identity_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billsync/pkg/identity"
)

const secret = "super-secret-jwt-token-with-at-least-32-characters"

func hsToken(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func TestHMACProviderAuthenticate(t *testing.T) {
	t.Parallel()

	now := time.Now()
	exp := now.Add(time.Hour).Unix()

	p, err := identity.NewHMACProvider(secret, identity.WithAudience("authenticated"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		want    identity.Identity
		wantErr error
	}{
		{
			name:  "valid token",
			token: hsToken(t, secret, jwt.MapClaims{"sub": "42", "email": "user@example.com", "aud": "authenticated", "exp": exp}),
			want:  identity.Identity{UserID: "42", Email: "user@example.com"},
		},
		{
			name:  "email is optional",
			token: hsToken(t, secret, jwt.MapClaims{"sub": "42", "aud": "authenticated", "exp": exp}),
			want:  identity.Identity{UserID: "42"},
		},
		{
			name:    "empty token",
			token:   "",
			wantErr: identity.ErrMissingToken,
		},
		{
			name:    "garbage",
			token:   "not.a.jwt",
			wantErr: identity.ErrInvalidToken,
		},
		{
			name:    "wrong secret",
			token:   hsToken(t, "another-secret", jwt.MapClaims{"sub": "42", "aud": "authenticated", "exp": exp}),
			wantErr: identity.ErrInvalidToken,
		},
		{
			name:    "expired",
			token:   hsToken(t, secret, jwt.MapClaims{"sub": "42", "aud": "authenticated", "exp": now.Add(-time.Hour).Unix()}),
			wantErr: identity.ErrInvalidToken,
		},
		{
			name:    "no expiry",
			token:   hsToken(t, secret, jwt.MapClaims{"sub": "42", "aud": "authenticated"}),
			wantErr: identity.ErrInvalidToken,
		},
		{
			name:    "wrong audience",
			token:   hsToken(t, secret, jwt.MapClaims{"sub": "42", "aud": "service_role", "exp": exp}),
			wantErr: identity.ErrInvalidToken,
		},
		{
			name:    "missing subject",
			token:   hsToken(t, secret, jwt.MapClaims{"aud": "authenticated", "exp": exp}),
			wantErr: identity.ErrMissingSubject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := p.Authenticate(context.Background(), tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHMACProviderRejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	p, err := identity.NewHMACProvider(secret)
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": "42",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = p.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	_, err := identity.NewFromConfig(context.Background(), identity.Config{})
	assert.ErrorIs(t, err, identity.ErrNotConfigured)

	p, err := identity.NewFromConfig(context.Background(), identity.Config{JWTSecret: secret, Issuer: "https://auth.example.com"})
	require.NoError(t, err)
	defer p.Close()

	token := hsToken(t, secret, jwt.MapClaims{"sub": "7", "iss": "https://auth.example.com", "exp": time.Now().Add(time.Minute).Unix()})
	got, err := p.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "7", got.UserID)

	bad := hsToken(t, secret, jwt.MapClaims{"sub": "7", "iss": "https://evil.example.com", "exp": time.Now().Add(time.Minute).Unix()})
	_, err = p.Authenticate(context.Background(), bad)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestJWKSProvider(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "test-key",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := identity.NewJWKSProvider(ctx, srv.URL, time.Hour)
	require.NoError(t, err)
	defer p.Close()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = "test-key"
	signed, err := tok.SignedString(key)
	require.NoError(t, err)

	got, err := p.Authenticate(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)

	_, err = p.Authenticate(context.Background(), hsToken(t, secret, jwt.MapClaims{"sub": "x", "exp": time.Now().Add(time.Hour).Unix()}))
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "valid", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "lower case scheme", header: "bearer abc", want: "abc"},
		{name: "missing", header: "", wantErr: identity.ErrMissingToken},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantErr: identity.ErrInvalidToken},
		{name: "no token", header: "Bearer ", wantErr: identity.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := identity.BearerToken(r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
