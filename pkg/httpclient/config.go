// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package httpclient

import (
	"net/http"
	"time"
)

// Config holds the outbound client settings.
type Config struct {
	Timeout time.Duration

	// Transport replaces http.DefaultTransport, e.g. an oauth2 or otelhttp
	// transport.
	Transport http.RoundTripper
}

// DefaultConfig returns the configuration used by outbound notifiers
func DefaultConfig() Config {
	return Config{Timeout: 10 * time.Second}
}
