// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
)

// DefaultMaxBodyBytes caps lifecycle request payloads
const DefaultMaxBodyBytes = 1 << 20

// RequestBodyMiddleware reads POST bodies up to limit bytes before decoding
// and keeps the raw bytes in the context. Oversized bodies are rejected with
// 413 in the error envelope.
func RequestBodyMiddleware(limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			// Replace body so the endpoint decoder can still read it
			r.Body = io.NopCloser(bytes.NewReader(body))
			ctx := context.WithValue(r.Context(), constants.RequestBodyContextKey, body)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
