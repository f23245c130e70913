// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package nats

import "time"

// Config holds NATS connection settings
type Config struct {
	// URL is the NATS server URL
	URL string
	// Timeout bounds connects and request/reply calls
	Timeout time.Duration
	// MaxReconnect is the number of reconnect attempts, -1 for unlimited
	MaxReconnect int
	// ReconnectWait is the pause between reconnect attempts
	ReconnectWait time.Duration
	// Credentials is an optional path to a NATS .creds file
	Credentials string
}
