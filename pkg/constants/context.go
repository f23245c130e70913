// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package constants defines shared names and keys used throughout the subscriber service.
package constants

// ContextKey is the unified type for all context keys to prevent type mismatches
type ContextKey string

// Context keys for various middleware and service contexts
const (
	// PrincipalContextID is the context key for the authenticated caller
	PrincipalContextID ContextKey = "principal"

	// AuthorizationContextID is the context key for the raw access token
	AuthorizationContextID ContextKey = "authorization"

	// RequestIDContextKey is the context key for request ID
	RequestIDContextKey ContextKey = "request-id"

	// ClientOriginContextKey is the context key for the caller's network address
	ClientOriginContextKey ContextKey = "client-origin"

	// RequestBodyContextKey is the context key for the raw request body
	RequestBodyContextKey ContextKey = "request-body"
)
