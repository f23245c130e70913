// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package middleware provides the HTTP middleware chain of the subscriber API.
package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError writes the API error envelope for failures raised before a
// request reaches an endpoint.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":  status,
		"error": message,
		"data":  map[string]any{},
	})
}
