// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package port

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
)

// SubscriberReader defines the interface for reading subscriber data
type SubscriberReader interface {
	// GetSubscriberByEmail retrieves the subscriber holding email on the list,
	// comparing addresses case-insensitively. Returns NotFound when absent.
	GetSubscriberByEmail(ctx context.Context, listID int64, email string) (*model.Subscriber, uint64, error)

	// GetSubscriberByCID retrieves a subscriber by its public code
	GetSubscriberByCID(ctx context.Context, cid string) (*model.Subscriber, uint64, error)
}
