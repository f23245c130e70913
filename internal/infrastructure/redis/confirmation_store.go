// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"

	"github.com/redis/go-redis/v9"
)

const confirmationKeyPrefix = "subscriber:confirmation:"

// confirmationStore keeps pending confirmations as msgpack values whose key
// expiry matches the record's ExpiresAt.
type confirmationStore struct {
	client *redis.Client
	now    func() time.Time
}

var _ port.ConfirmationStore = (*confirmationStore)(nil)

// NewConfirmationStore returns a ConfirmationStore backed by client.
func NewConfirmationStore(client *redis.Client) port.ConfirmationStore {
	return &confirmationStore{
		client: client,
		now:    time.Now,
	}
}

func confirmationKey(token string) string {
	return confirmationKeyPrefix + token
}

// CreatePendingConfirmation stores the record with SETNX; a taken token is a
// Conflict.
func (s *confirmationStore) CreatePendingConfirmation(ctx context.Context, pending *model.PendingConfirmation) error {
	if pending.Token == "" {
		return errors.NewValidation("confirmation token cannot be empty")
	}

	ttl := constants.DefaultConfirmationTTL
	if !pending.ExpiresAt.IsZero() {
		ttl = pending.ExpiresAt.Sub(s.now())
	}
	if ttl <= 0 {
		return errors.NewValidation("pending confirmation already expired")
	}

	created, err := s.client.SetNX(ctx, confirmationKey(pending.Token), pending, ttl).Result()
	if err != nil {
		slog.ErrorContext(ctx, "failed to store pending confirmation", "error", err)
		return errors.NewServiceUnavailable("failed to store pending confirmation", err)
	}
	if !created {
		return errors.NewConflict("confirmation token already exists")
	}

	slog.DebugContext(ctx, "redis: pending confirmation stored",
		"action", pending.Action,
		"ttl", ttl.String())
	return nil
}

// DeletePendingConfirmation removes the record; DEL of a missing key is fine.
func (s *confirmationStore) DeletePendingConfirmation(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, confirmationKey(token)).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to delete pending confirmation", "error", err)
		return errors.NewServiceUnavailable("failed to delete pending confirmation", err)
	}
	return nil
}
