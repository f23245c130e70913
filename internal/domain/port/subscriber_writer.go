// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package port

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
)

// BaseWriter exposes raw key cleanup used for rollback
type BaseWriter interface {
	// GetKeyRevision retrieves the revision for a given key (used for cleanup operations)
	GetKeyRevision(ctx context.Context, key string) (uint64, error)

	// Delete removes a key with the given revision (used for cleanup and rollback)
	Delete(ctx context.Context, key string, revision uint64) error
}

// SubscriberWriter defines the interface for writing subscriber data.
// Implementations must make UniqueSubscriberEmail atomic; it is the only
// guard for one record per address per list.
type SubscriberWriter interface {
	BaseWriter

	// UniqueSubscriberEmail reserves the subscriber's (list, email) pair.
	// Returns the reservation key for rollback and Conflict when taken.
	UniqueSubscriberEmail(ctx context.Context, subscriber *model.Subscriber) (string, error)

	// CreateSubscriber stores a new subscriber, assigning its numeric id
	CreateSubscriber(ctx context.Context, subscriber *model.Subscriber) (*model.Subscriber, uint64, error)

	// UpdateSubscriber replaces a subscriber with optimistic concurrency control
	UpdateSubscriber(ctx context.Context, subscriber *model.Subscriber, expectedRevision uint64) (*model.Subscriber, uint64, error)

	// DeleteSubscriber removes the subscriber and releases its email reservation
	DeleteSubscriber(ctx context.Context, subscriber *model.Subscriber, expectedRevision uint64) error
}

// SubscriberRepository is the storage layer for subscribers. It holds no
// orchestration logic; see service.SubscriptionStateMachine for that.
type SubscriberRepository interface {
	SubscriberReader
	SubscriberWriter
	IsReady(ctx context.Context) error
}
