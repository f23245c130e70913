// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package port

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
)

// BlacklistReader checks the platform-wide blacklist
type BlacklistReader interface {
	IsBlacklisted(ctx context.Context, email string) (bool, error)
}

// BlacklistWriter maintains the platform-wide blacklist. Both operations are
// idempotent.
type BlacklistWriter interface {
	AddBlacklistEntry(ctx context.Context, entry *model.BlacklistEntry) error
	RemoveBlacklistEntry(ctx context.Context, email string) error
}

// BlacklistRepository is the storage layer for the blacklist
type BlacklistRepository interface {
	BlacklistReader
	BlacklistWriter
}
