// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package auth validates access tokens presented to the subscriber API.
package auth

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
)

const (
	defaultIssuer   = "heimdall"
	defaultAudience = "lfx-v2-subscriber-service"
	defaultJWKSURL  = "http://heimdall:4457/.well-known/jwks"
	defaultCacheTTL = 5 * time.Minute
	clockSkew       = 30 * time.Second
)

// JWTAuthConfig configures token validation. Empty values fall back to the
// platform gateway defaults.
type JWTAuthConfig struct {
	JWKSURL  string
	Audience string
	Issuer   string
	CacheTTL time.Duration
	// MockLocalPrincipal short-circuits validation for local development
	MockLocalPrincipal string
}

// HeimdallClaims are the custom claims minted by the API gateway
type HeimdallClaims struct {
	Principal string `json:"principal"`
	Email     string `json:"email,omitempty"`
}

// Validate satisfies validator.CustomClaims
func (c *HeimdallClaims) Validate(context.Context) error {
	return nil
}

// JWTAuth validates PS256 tokens against a cached JWKS.
type JWTAuth struct {
	validator     *validator.Validator
	mockPrincipal string
}

var _ port.Authenticator = (*JWTAuth)(nil)

// NewJWTAuth builds the authenticator with a caching JWKS provider.
func NewJWTAuth(config JWTAuthConfig) (*JWTAuth, error) {
	config = withDefaults(config)

	jwksURL, err := url.Parse(config.JWKSURL)
	if err != nil {
		return nil, errors.NewValidation("invalid JWKS URL", err)
	}
	issuerURL, err := url.Parse(config.Issuer)
	if err != nil {
		return nil, errors.NewValidation("invalid JWT issuer", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, config.CacheTTL, jwks.WithCustomJWKSURI(jwksURL))

	return newJWTAuth(config, provider.KeyFunc)
}

func newJWTAuth(config JWTAuthConfig, keyFunc func(context.Context) (interface{}, error)) (*JWTAuth, error) {
	config = withDefaults(config)

	v, err := validator.New(
		keyFunc,
		validator.PS256,
		config.Issuer,
		[]string{config.Audience},
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &HeimdallClaims{}
		}),
		validator.WithAllowedClockSkew(clockSkew),
	)
	if err != nil {
		return nil, errors.NewValidation("failed to set up JWT validator", err)
	}

	if config.MockLocalPrincipal != "" {
		slog.Warn("JWT validation disabled, using mock local principal",
			"principal", config.MockLocalPrincipal)
	}

	return &JWTAuth{
		validator:     v,
		mockPrincipal: config.MockLocalPrincipal,
	}, nil
}

func withDefaults(config JWTAuthConfig) JWTAuthConfig {
	if config.JWKSURL == "" {
		config.JWKSURL = defaultJWKSURL
	}
	if config.Audience == "" {
		config.Audience = defaultAudience
	}
	if config.Issuer == "" {
		config.Issuer = defaultIssuer
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaultCacheTTL
	}
	return config
}

// ParsePrincipal validates token and returns the caller principal. The
// gateway's principal claim wins over the subject.
func (j *JWTAuth) ParsePrincipal(ctx context.Context, token string) (string, error) {
	if j.mockPrincipal != "" {
		return j.mockPrincipal, nil
	}

	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return "", errors.NewForbidden("missing access token")
	}

	parsed, err := j.validator.ValidateToken(ctx, token)
	if err != nil {
		slog.DebugContext(ctx, "access token rejected", "error", err)
		return "", errors.NewForbidden("invalid or expired access token", err)
	}

	claims, ok := parsed.(*validator.ValidatedClaims)
	if !ok {
		return "", errors.NewForbidden("unexpected token claims")
	}

	if custom, ok := claims.CustomClaims.(*HeimdallClaims); ok && custom.Principal != "" {
		return custom.Principal, nil
	}
	if claims.RegisteredClaims.Subject != "" {
		return claims.RegisteredClaims.Subject, nil
	}
	return "", errors.NewForbidden("access token carries no principal")
}
