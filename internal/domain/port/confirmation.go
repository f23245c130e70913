// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package port

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
)

// ConfirmationStore persists pending confirmations keyed by token
type ConfirmationStore interface {
	// CreatePendingConfirmation stores a new record; Conflict if the token exists
	CreatePendingConfirmation(ctx context.Context, pending *model.PendingConfirmation) error

	// DeletePendingConfirmation removes a record; deleting a missing token is not an error
	DeletePendingConfirmation(ctx context.Context, token string) error
}

// ConfirmationNotifier dispatches the message asking the address owner to
// confirm. Delivery mechanics belong to the implementation.
type ConfirmationNotifier interface {
	SendConfirmation(ctx context.Context, notice *model.ConfirmationNotice) error
}
