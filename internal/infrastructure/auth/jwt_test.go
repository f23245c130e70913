// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	stderrors "errors"
	"testing"
	"time"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	jose "gopkg.in/go-jose/go-jose.v2"
	"gopkg.in/go-jose/go-jose.v2/jwt"
)

type tokenFixture struct {
	key *rsa.PrivateKey
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &tokenFixture{key: key}
}

func (f *tokenFixture) keyFunc(context.Context) (interface{}, error) {
	return &f.key.PublicKey, nil
}

func (f *tokenFixture) sign(t *testing.T, alg jose.SignatureAlgorithm, claims jwt.Claims, custom map[string]any) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: f.key}, (&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(t, err)

	builder := jwt.Signed(signer).Claims(claims)
	if custom != nil {
		builder = builder.Claims(custom)
	}
	raw, err := builder.CompactSerialize()
	require.NoError(t, err)
	return raw
}

func validClaims() jwt.Claims {
	now := time.Now()
	return jwt.Claims{
		Issuer:   defaultIssuer,
		Subject:  "user-sub",
		Audience: jwt.Audience{defaultAudience},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(time.Hour)),
	}
}

func TestParsePrincipal(t *testing.T) {
	fixture := newTokenFixture(t)
	auth, err := newJWTAuth(JWTAuthConfig{}, fixture.keyFunc)
	require.NoError(t, err)

	expired := validClaims()
	expired.Expiry = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.Audience{"other-service"}

	tests := []struct {
		name      string
		token     func(t *testing.T) string
		want      string
		wantError bool
	}{
		{
			name: "principal claim wins",
			token: func(t *testing.T) string {
				return fixture.sign(t, jose.PS256, validClaims(), map[string]any{"principal": "ada"})
			},
			want: "ada",
		},
		{
			name: "falls back to subject",
			token: func(t *testing.T) string {
				return fixture.sign(t, jose.PS256, validClaims(), nil)
			},
			want: "user-sub",
		},
		{
			name: "bearer prefix is accepted",
			token: func(t *testing.T) string {
				return "Bearer " + fixture.sign(t, jose.PS256, validClaims(), nil)
			},
			want: "user-sub",
		},
		{
			name: "expired token",
			token: func(t *testing.T) string {
				return fixture.sign(t, jose.PS256, expired, nil)
			},
			wantError: true,
		},
		{
			name: "wrong audience",
			token: func(t *testing.T) string {
				return fixture.sign(t, jose.PS256, wrongAudience, nil)
			},
			wantError: true,
		},
		{
			name: "wrong algorithm",
			token: func(t *testing.T) string {
				return fixture.sign(t, jose.RS256, validClaims(), nil)
			},
			wantError: true,
		},
		{
			name:      "empty token",
			token:     func(*testing.T) string { return "" },
			wantError: true,
		},
		{
			name:      "garbage token",
			token:     func(*testing.T) string { return "not.a.jwt" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal, err := auth.ParsePrincipal(context.Background(), tt.token(t))
			if tt.wantError {
				var forbidden errors.Forbidden
				assert.True(t, stderrors.As(err, &forbidden))
				assert.Empty(t, principal)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, principal)
		})
	}
}

func TestParsePrincipalMockLocal(t *testing.T) {
	auth, err := newJWTAuth(JWTAuthConfig{MockLocalPrincipal: "local-dev"}, newTokenFixture(t).keyFunc)
	require.NoError(t, err)

	principal, err := auth.ParsePrincipal(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "local-dev", principal)
}

func TestNewJWTAuth(t *testing.T) {
	auth, err := NewJWTAuth(JWTAuthConfig{JWKSURL: "http://localhost:4457/.well-known/jwks"})
	require.NoError(t, err)
	assert.NotNil(t, auth)

	_, err = NewJWTAuth(JWTAuthConfig{JWKSURL: "://bad"})
	var validation errors.Validation
	assert.True(t, stderrors.As(err, &validation))
}
