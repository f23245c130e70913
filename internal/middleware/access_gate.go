// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/log"
)

// Access gate failure messages.
const (
	MessageMissingAccessToken = "Missing access_token"
	MessageInvalidAccessToken = "Invalid or expired access_token"
)

// AccessGateMiddleware requires an access token on every path except the
// exempt ones. The token is read from the access_token query parameter, then
// from a Bearer Authorization header.
func AccessGateMiddleware(auth port.Authenticator, exempt ...string) func(http.Handler) http.Handler {
	open := make(map[string]struct{}, len(exempt))
	for _, path := range exempt {
		open[path] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := open[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token := accessToken(r)
			if token == "" {
				writeError(w, http.StatusForbidden, MessageMissingAccessToken)
				return
			}

			principal, err := auth.ParsePrincipal(r.Context(), token)
			if err != nil {
				slog.WarnContext(r.Context(), "access token rejected", "error", err, "path", r.URL.Path)
				writeError(w, http.StatusForbidden, MessageInvalidAccessToken)
				return
			}

			ctx := context.WithValue(r.Context(), constants.PrincipalContextID, principal)
			ctx = context.WithValue(ctx, constants.AuthorizationContextID, token)
			ctx = log.AppendCtx(ctx, slog.String("principal", principal))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get(constants.AccessTokenQueryParam)); token != "" {
		return token
	}
	header := r.Header.Get(constants.AuthorizationHeader)
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return ""
}
