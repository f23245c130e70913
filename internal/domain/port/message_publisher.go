// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package port

import "context"

// MessagePublisher publishes subscriber lifecycle events for downstream
// consumers. It is implemented by the NATS messaging infrastructure.
type MessagePublisher interface {
	Event(ctx context.Context, subject string, message any) error
}
