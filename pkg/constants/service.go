// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import "time"

// Confirmation workflow defaults
const (
	// DefaultConfirmationTTL is how long a pending confirmation stays redeemable
	DefaultConfirmationTTL = 72 * time.Hour
)

// Event publishing
const (
	// DefaultEventPublishWorkers bounds concurrent event publishing per request
	DefaultEventPublishWorkers = 2
)
