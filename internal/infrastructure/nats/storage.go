// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package nats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	errs "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"

	"github.com/nats-io/nats.go/jetstream"
)

// storage implements the storage ports on top of the NATS KV buckets
type storage struct {
	client *NATSClient
}

var (
	_ port.CatalogReader        = (*storage)(nil)
	_ port.SubscriberRepository = (*storage)(nil)
	_ port.BlacklistRepository  = (*storage)(nil)
	_ port.ConfirmationStore    = (*storage)(nil)
)

// NewCatalogStorage returns the list and field schema reader
func NewCatalogStorage(client *NATSClient) port.CatalogReader {
	return &storage{client: client}
}

// NewSubscriberStorage returns the subscriber repository
func NewSubscriberStorage(client *NATSClient) port.SubscriberRepository {
	return &storage{client: client}
}

// NewBlacklistStorage returns the blacklist repository
func NewBlacklistStorage(client *NATSClient) port.BlacklistRepository {
	return &storage{client: client}
}

// NewConfirmationStorage returns the pending confirmation store
func NewConfirmationStorage(client *NATSClient) port.ConfirmationStore {
	return &storage{client: client}
}

// bucket returns the bound KV bucket or ServiceUnavailable
func (s *storage) bucket(name string) (jetstream.KeyValue, error) {
	kv, exists := s.client.kvStore[name]
	if !exists || kv == nil {
		return nil, errs.NewServiceUnavailable("KV bucket not available")
	}
	return kv, nil
}

// get retrieves a model from the NATS KV store by bucket and key.
// It unmarshals the data into the provided model and returns the revision.
func (s *storage) get(ctx context.Context, bucket, key string, model any) (uint64, error) {
	if key == "" {
		return 0, errs.NewValidation("key cannot be empty")
	}

	kv, err := s.bucket(bucket)
	if err != nil {
		return 0, err
	}

	data, errGet := kv.Get(ctx, key)
	if errGet != nil {
		return 0, errGet
	}

	if errUnmarshal := json.Unmarshal(data.Value(), model); errUnmarshal != nil {
		return 0, errUnmarshal
	}

	return data.Revision(), nil
}

// getValue retrieves the raw value stored under key
func (s *storage) getValue(ctx context.Context, bucket, key string) (string, error) {
	kv, err := s.bucket(bucket)
	if err != nil {
		return "", err
	}

	entry, err := kv.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(entry.Value()), nil
}

// create stores a new model, failing with jetstream.ErrKeyExists when the
// key is taken
func (s *storage) create(ctx context.Context, bucket, key string, model any) (uint64, error) {
	if key == "" {
		return 0, errs.NewValidation("key cannot be empty")
	}

	kv, err := s.bucket(bucket)
	if err != nil {
		return 0, err
	}

	data, err := json.Marshal(model)
	if err != nil {
		return 0, err
	}

	return kv.Create(ctx, key, data)
}

// putWithRevision stores a model in the NATS KV store with expected revision checking.
// It performs conditional update based on the expected revision.
func (s *storage) putWithRevision(ctx context.Context, bucket, key string, model any, expectedRevision uint64) (uint64, error) {
	if key == "" {
		return 0, errs.NewValidation("key cannot be empty")
	}

	kv, err := s.bucket(bucket)
	if err != nil {
		return 0, err
	}

	data, err := json.Marshal(model)
	if err != nil {
		return 0, err
	}

	return kv.Update(ctx, key, data, expectedRevision)
}

// delete removes a model from the NATS KV store by bucket and key with revision checking.
func (s *storage) delete(ctx context.Context, bucket, key string, expectedRevision uint64) error {
	if key == "" {
		return errs.NewValidation("key cannot be empty")
	}

	kv, err := s.bucket(bucket)
	if err != nil {
		return err
	}

	return kv.Delete(ctx, key, jetstream.LastRevision(expectedRevision))
}

// createUniqueConstraintInBucket creates a unique constraint key in a specific NATS KV bucket
func (s *storage) createUniqueConstraintInBucket(ctx context.Context, bucket, uniqueKey, entityID string) (string, error) {
	kv, err := s.bucket(bucket)
	if err != nil {
		return "", err
	}

	// Try to create the constraint key - this will fail if it already exists
	if _, err := kv.Create(ctx, uniqueKey, []byte(entityID)); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			slog.WarnContext(ctx, "constraint violation - key already exists",
				"constraint_key", uniqueKey,
				"entity_id", entityID,
				"bucket", bucket,
			)
			return "", errs.NewConflict("subscriber already exists for this email")
		}
		slog.ErrorContext(ctx, "failed to create unique constraint",
			"error", err,
			"constraint_key", uniqueKey,
			"entity_id", entityID,
			"bucket", bucket,
		)
		return "", errs.NewServiceUnavailable("failed to create unique constraint", err)
	}

	slog.DebugContext(ctx, "unique constraint created successfully",
		"constraint_key", uniqueKey,
		"entity_id", entityID,
		"bucket", bucket,
	)

	return uniqueKey, nil
}

// releaseKey deletes a constraint key at its current revision; failures are
// logged only
func (s *storage) releaseKey(ctx context.Context, bucket, key string) {
	rev, err := s.getKeyRevisionFromBucket(ctx, bucket, key)
	if err != nil {
		slog.WarnContext(ctx, "failed to read constraint key for release", "error", err, "key", key)
		return
	}
	if err := s.deleteFromBucket(ctx, bucket, key, rev); err != nil {
		slog.WarnContext(ctx, "failed to release constraint key", "error", err, "key", key)
	}
}

// detectBucketForKey determines which bucket to use based on key prefix patterns.
// Subscriber cids, email reservations and the id sequence share a bucket.
func (s *storage) detectBucketForKey(key string) string {
	switch {
	case strings.HasPrefix(key, strings.TrimSuffix(constants.KVLookupListIDPrefix, "%d")):
		return constants.KVBucketNameLists
	default:
		return constants.KVBucketNameSubscribers
	}
}

// GetKeyRevision retrieves the revision for a given key (used for cleanup operations)
func (s *storage) GetKeyRevision(ctx context.Context, key string) (uint64, error) {
	return s.getKeyRevisionFromBucket(ctx, s.detectBucketForKey(key), key)
}

// getKeyRevisionFromBucket retrieves the revision for a given key from a specific bucket
func (s *storage) getKeyRevisionFromBucket(ctx context.Context, bucket, key string) (uint64, error) {
	if key == "" {
		return 0, errs.NewValidation("key cannot be empty")
	}

	kv, err := s.bucket(bucket)
	if err != nil {
		return 0, err
	}

	entry, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, errs.NewNotFound("key not found")
		}
		return 0, errs.NewServiceUnavailable("failed to get key revision", err)
	}

	return entry.Revision(), nil
}

// Delete removes a key with the given revision (used for cleanup and rollback)
func (s *storage) Delete(ctx context.Context, key string, revision uint64) error {
	return s.deleteFromBucket(ctx, s.detectBucketForKey(key), key, revision)
}

// deleteFromBucket removes a key with the given revision from a specific bucket
func (s *storage) deleteFromBucket(ctx context.Context, bucket, key string, revision uint64) error {
	if key == "" {
		return errs.NewValidation("key cannot be empty")
	}

	kv, err := s.bucket(bucket)
	if err != nil {
		return err
	}

	if err := kv.Delete(ctx, key, jetstream.LastRevision(revision)); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			// Key not found, consider it a success for idempotency
			slog.WarnContext(ctx, "key not found during deletion", "key", key, "revision", revision, "bucket", bucket)
			return nil
		}
		slog.ErrorContext(ctx, "failed to delete key", "error", err, "key", key, "revision", revision, "bucket", bucket)
		return errs.NewServiceUnavailable("failed to delete key", err)
	}

	slog.DebugContext(ctx, "key deleted successfully", "key", key, "revision", revision, "bucket", bucket)
	return nil
}

// IsReady checks if the storage is ready by verifying the client connection
func (s *storage) IsReady(ctx context.Context) error {
	return s.client.IsReady(ctx)
}

// isRevisionConflict reports whether a KV write lost an optimistic
// concurrency race
func isRevisionConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

// storageError maps a KV error to the domain error taxonomy
func storageError(err error, notFoundMessage, failureMessage string) error {
	var (
		validation  errs.Validation
		unavailable errs.ServiceUnavailable
	)
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound), errors.Is(err, jetstream.ErrKeyDeleted):
		return errs.NewNotFound(notFoundMessage)
	case isRevisionConflict(err):
		return errs.NewConflict("record has been modified by another process")
	case errors.As(err, &validation), errors.As(err, &unavailable):
		return err
	default:
		return errs.NewServiceUnavailable(failureMessage, err)
	}
}
