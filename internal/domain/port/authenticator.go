// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package port

import "context"

// Authenticator validates an access token and returns the caller principal.
// Invalid or expired tokens produce a Forbidden error.
type Authenticator interface {
	ParsePrincipal(ctx context.Context, token string) (string, error)
}

// ReadinessChecker reports whether a backing store can serve requests
type ReadinessChecker interface {
	IsReady(ctx context.Context) error
}
