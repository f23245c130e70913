// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	errs "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/opaque"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/redaction"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/utils"

	"github.com/nats-io/nats.go/jetstream"
)

// sequenceRetry bounds the compare-and-swap loop on the id sequence
var sequenceRetry = utils.NewRetryConfig(5, 10*time.Millisecond, 200*time.Millisecond).WithRetryable(isRevisionConflict)

func emailLookupKey(listID int64, email string) string {
	return fmt.Sprintf(constants.KVLookupSubscriberEmailPrefix, model.SubscriberIndexKey(listID, email))
}

// GetSubscriberByEmail resolves the (list, email) reservation to the subscriber
func (s *storage) GetSubscriberByEmail(ctx context.Context, listID int64, email string) (*model.Subscriber, uint64, error) {
	lookupKey := emailLookupKey(listID, email)

	slog.DebugContext(ctx, "nats storage: getting subscriber by email",
		"list_id", listID,
		"email", redaction.RedactEmail(email),
		"lookup_key", lookupKey)

	cid, err := s.getValue(ctx, constants.KVBucketNameSubscribers, lookupKey)
	if err != nil {
		return nil, 0, storageError(err, "subscriber not found", "failed to look up subscriber")
	}

	return s.GetSubscriberByCID(ctx, cid)
}

// GetSubscriberByCID retrieves a subscriber by its public code with revision
func (s *storage) GetSubscriberByCID(ctx context.Context, cid string) (*model.Subscriber, uint64, error) {
	if !opaque.Valid(cid) {
		return nil, 0, errs.NewNotFound("subscriber not found")
	}

	sub := &model.Subscriber{}
	rev, err := s.get(ctx, constants.KVBucketNameSubscribers, cid, sub)
	if err != nil {
		return nil, 0, storageError(err, "subscriber not found", "failed to get subscriber")
	}

	slog.DebugContext(ctx, "nats storage: subscriber retrieved",
		"subscriber_cid", cid,
		"revision", rev)

	return sub, rev, nil
}

// UniqueSubscriberEmail reserves the (list, email) pair for the subscriber
func (s *storage) UniqueSubscriberEmail(ctx context.Context, subscriber *model.Subscriber) (string, error) {
	constraintKey := fmt.Sprintf(constants.KVLookupSubscriberEmailPrefix, subscriber.BuildIndexKey(ctx))
	return s.createUniqueConstraintInBucket(ctx, constants.KVBucketNameSubscribers, constraintKey, subscriber.CID)
}

// CreateSubscriber assigns the next numeric id and stores the subscriber
func (s *storage) CreateSubscriber(ctx context.Context, subscriber *model.Subscriber) (*model.Subscriber, uint64, error) {
	id, err := s.nextSubscriberID(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to allocate subscriber id", "error", err)
		return nil, 0, errs.NewServiceUnavailable("failed to allocate subscriber id", err)
	}
	subscriber.ID = id

	rev, err := s.create(ctx, constants.KVBucketNameSubscribers, subscriber.CID, subscriber)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create subscriber", "error", err, "subscriber_cid", subscriber.CID)
		if errors.Is(err, jetstream.ErrKeyExists) {
			return nil, 0, errs.NewConflict(fmt.Sprintf("subscriber with cid %s already exists", subscriber.CID))
		}
		return nil, 0, storageError(err, "subscriber not found", "failed to create subscriber")
	}

	slog.DebugContext(ctx, "nats storage: subscriber created",
		"subscriber_cid", subscriber.CID,
		"subscriber_id", id,
		"revision", rev)

	return subscriber, rev, nil
}

// UpdateSubscriber writes the subscriber at expectedRevision. When the email
// changed the new reservation is taken first and the old one released after
// the write.
func (s *storage) UpdateSubscriber(ctx context.Context, subscriber *model.Subscriber, expectedRevision uint64) (*model.Subscriber, uint64, error) {
	current, _, err := s.GetSubscriberByCID(ctx, subscriber.CID)
	if err != nil {
		return nil, 0, err
	}

	oldKey := emailLookupKey(current.ListID, current.Email)
	newKey := emailLookupKey(subscriber.ListID, subscriber.Email)
	moved := oldKey != newKey

	if moved {
		if _, err := s.createUniqueConstraintInBucket(ctx, constants.KVBucketNameSubscribers, newKey, subscriber.CID); err != nil {
			return nil, 0, err
		}
	}

	rev, err := s.putWithRevision(ctx, constants.KVBucketNameSubscribers, subscriber.CID, subscriber, expectedRevision)
	if err != nil {
		slog.ErrorContext(ctx, "failed to update subscriber",
			"error", err,
			"subscriber_cid", subscriber.CID,
			"expected_revision", expectedRevision)
		if moved {
			s.releaseKey(ctx, constants.KVBucketNameSubscribers, newKey)
		}
		return nil, 0, storageError(err, "subscriber not found", "failed to update subscriber")
	}

	if moved {
		s.releaseKey(ctx, constants.KVBucketNameSubscribers, oldKey)
	}

	slog.DebugContext(ctx, "nats storage: subscriber updated",
		"subscriber_cid", subscriber.CID,
		"revision", rev)

	return subscriber, rev, nil
}

// DeleteSubscriber removes the subscriber and releases its email reservation
func (s *storage) DeleteSubscriber(ctx context.Context, subscriber *model.Subscriber, expectedRevision uint64) error {
	if err := s.delete(ctx, constants.KVBucketNameSubscribers, subscriber.CID, expectedRevision); err != nil {
		slog.ErrorContext(ctx, "failed to delete subscriber", "error", err, "subscriber_cid", subscriber.CID)
		return storageError(err, "subscriber not found", "failed to delete subscriber")
	}

	s.releaseKey(ctx, constants.KVBucketNameSubscribers, emailLookupKey(subscriber.ListID, subscriber.Email))

	slog.DebugContext(ctx, "nats storage: subscriber deleted", "subscriber_cid", subscriber.CID)
	return nil
}

// nextSubscriberID increments the id sequence with compare-and-swap
func (s *storage) nextSubscriberID(ctx context.Context) (int64, error) {
	kv, err := s.bucket(constants.KVBucketNameSubscribers)
	if err != nil {
		return 0, err
	}

	var next int64
	err = utils.RetryWithExponentialBackoff(ctx, sequenceRetry, func() error {
		entry, err := kv.Get(ctx, constants.KVSequenceSubscriberID)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			next = 1
			_, err = kv.Create(ctx, constants.KVSequenceSubscriberID, []byte("1"))
			return err
		}
		if err != nil {
			return err
		}

		current, err := strconv.ParseInt(string(entry.Value()), 10, 64)
		if err != nil {
			return fmt.Errorf("corrupt subscriber id sequence: %w", err)
		}
		next = current + 1
		_, err = kv.Update(ctx, constants.KVSequenceSubscriberID, []byte(strconv.FormatInt(next, 10)), entry.Revision())
		return err
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}
