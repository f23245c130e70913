// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package nats

import (
	"context"
	"errors"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	errs "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/opaque"

	"github.com/nats-io/nats.go/jetstream"
)

// CreatePendingConfirmation stores the msgpack encoded record under its token.
// Expiry is enforced by the bucket TTL.
func (s *storage) CreatePendingConfirmation(ctx context.Context, pending *model.PendingConfirmation) error {
	if pending.Token == "" {
		return errs.NewValidation("confirmation token cannot be empty")
	}
	if !opaque.Valid(pending.Token) {
		return errs.NewValidation("malformed confirmation token")
	}

	kv, err := s.bucket(constants.KVBucketNameConfirmations)
	if err != nil {
		return err
	}

	data, err := pending.MarshalBinary()
	if err != nil {
		return errs.NewUnexpected("failed to encode pending confirmation", err)
	}

	rev, err := kv.Create(ctx, pending.Token, data)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return errs.NewConflict("confirmation token already exists")
		}
		return storageError(err, "confirmation not found", "failed to store pending confirmation")
	}

	slog.DebugContext(ctx, "nats storage: pending confirmation stored",
		"token", pending.Token,
		"revision", rev)
	return nil
}

// DeletePendingConfirmation removes a pending record; a missing token is fine
func (s *storage) DeletePendingConfirmation(ctx context.Context, token string) error {
	kv, err := s.bucket(constants.KVBucketNameConfirmations)
	if err != nil {
		return err
	}

	if err := kv.Delete(ctx, token); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return storageError(err, "confirmation not found", "failed to delete pending confirmation")
	}
	return nil
}
