// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package nats

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/redaction"

	"github.com/nats-io/nats.go/jetstream"
)

// blacklistKey hashes the normalized address; raw addresses are not valid
// KV keys
func blacklistKey(email string) string {
	hash := sha256.Sum256([]byte(model.NormalizeEmail(email)))
	return "email/" + hex.EncodeToString(hash[:])
}

// IsBlacklisted reports whether the address has a blacklist entry
func (s *storage) IsBlacklisted(ctx context.Context, email string) (bool, error) {
	kv, err := s.bucket(constants.KVBucketNameBlacklist)
	if err != nil {
		return false, err
	}

	if _, err := kv.Get(ctx, blacklistKey(email)); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return false, nil
		}
		return false, storageError(err, "blacklist entry not found", "failed to check blacklist")
	}
	return true, nil
}

// AddBlacklistEntry stores the entry; an existing entry is kept
func (s *storage) AddBlacklistEntry(ctx context.Context, entry *model.BlacklistEntry) error {
	_, err := s.create(ctx, constants.KVBucketNameBlacklist, blacklistKey(entry.Email), entry)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			slog.DebugContext(ctx, "address already blacklisted", "email", redaction.RedactEmail(entry.Email))
			return nil
		}
		return storageError(err, "blacklist entry not found", "failed to add blacklist entry")
	}
	return nil
}

// RemoveBlacklistEntry deletes the entry for the address
func (s *storage) RemoveBlacklistEntry(ctx context.Context, email string) error {
	kv, err := s.bucket(constants.KVBucketNameBlacklist)
	if err != nil {
		return err
	}

	if err := kv.Delete(ctx, blacklistKey(email)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return storageError(err, "blacklist entry not found", "failed to remove blacklist entry")
	}
	return nil
}
