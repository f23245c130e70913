// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/metrics"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	errs "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/opaque"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/redaction"
)

// Operation names used in logs and metrics.
const (
	OperationSubscribe     = "subscribe"
	OperationUnsubscribe   = "unsubscribe"
	OperationDelete        = "delete"
	OperationChangeAddress = "change_address"
)

// SubscribeResult is the outcome of Subscribe. ID is the subscriber cid, or
// the confirmation token when Pending is set.
type SubscribeResult struct {
	ID         string
	Pending    bool
	Subscriber *model.Subscriber
}

// ChangeAddressResult is the outcome of ChangeAddress. When Pending is set
// ID is the confirmation token and Subscriber is left unchanged.
type ChangeAddressResult struct {
	ID         string
	Pending    bool
	Subscriber *model.Subscriber
}

// stateMachineOption defines a function type for setting options on the state machine
type stateMachineOption func(*SubscriptionStateMachine)

// WithListReader sets the list catalog reader
func WithListReader(reader port.ListReader) stateMachineOption {
	return func(s *SubscriptionStateMachine) {
		s.lists = reader
	}
}

// WithFieldReader sets the field schema reader
func WithFieldReader(reader port.FieldReader) stateMachineOption {
	return func(s *SubscriptionStateMachine) {
		s.fields = reader
	}
}

// WithSubscriberRepository sets the subscriber storage
func WithSubscriberRepository(repo port.SubscriberRepository) stateMachineOption {
	return func(s *SubscriptionStateMachine) {
		s.subscribers = repo
	}
}

// WithBlacklistGuard sets the blacklist gate
func WithBlacklistGuard(guard *BlacklistGuard) stateMachineOption {
	return func(s *SubscriptionStateMachine) {
		s.blacklist = guard
	}
}

// WithAddressValidator sets the address gate
func WithAddressValidator(validator *AddressValidator) stateMachineOption {
	return func(s *SubscriptionStateMachine) {
		s.validator = validator
	}
}

// WithConfirmationWorkflow sets the double opt-in workflow
func WithConfirmationWorkflow(workflow *ConfirmationWorkflow) stateMachineOption {
	return func(s *SubscriptionStateMachine) {
		s.confirmations = workflow
	}
}

// WithPublisher sets the lifecycle event publisher
func WithPublisher(publisher port.MessagePublisher) stateMachineOption {
	return func(s *SubscriptionStateMachine) {
		s.publisher = publisher
	}
}

// SubscriptionStateMachine runs the subscriber lifecycle operations. Each
// call resolves the list, passes the gates in order and only then writes.
// Uniqueness of (list, email) is enforced by the repository.
type SubscriptionStateMachine struct {
	lists         port.ListReader
	fields        port.FieldReader
	subscribers   port.SubscriberRepository
	blacklist     *BlacklistGuard
	validator     *AddressValidator
	confirmations *ConfirmationWorkflow
	publisher     port.MessagePublisher
	now           func() time.Time
}

// NewSubscriptionStateMachine creates a state machine using the option pattern
func NewSubscriptionStateMachine(opts ...stateMachineOption) *SubscriptionStateMachine {
	s := &SubscriptionStateMachine{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = NewAddressValidator(s.subscribers)
	}
	return s
}

// Subscribe adds or refreshes the subscriber for the payload's EMAIL, or
// parks the request behind a confirmation when REQUIRE_CONFIRMATION is set.
func (s *SubscriptionStateMachine) Subscribe(ctx context.Context, in *SubscribeInput) (result *SubscribeResult, err error) {
	defer s.record(OperationSubscribe, &err)

	slog.DebugContext(ctx, "executing subscribe use case",
		"list", in.ListID,
		"email", redaction.RedactEmail(in.Email),
	)

	// Step 1: Resolve the list
	list, err := s.resolveList(ctx, in.ListID, in.IDType)
	if err != nil {
		return nil, err
	}

	// Step 2: Require and validate the address
	if in.Email == "" {
		return nil, errs.NewValidation("missing EMAIL")
	}
	if err := s.validator.Validate(ctx, in.Email); err != nil {
		return nil, errs.NewValidation("invalid EMAIL", err)
	}
	if s.blacklist != nil {
		if err := s.blacklist.Ensure(ctx, in.Email, "email is blacklisted"); err != nil {
			return nil, err
		}
	}

	// Step 3: Build the candidate attributes, merging list fields
	attrs := model.SubscriberAttributes{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Timezone:  in.Timezone,
		Fields:    MergeFields(in.Payload, s.resolveFields(ctx, list)),
	}

	// Step 4: Status intent
	status := model.StatusPartial
	if in.ForceSubscribe {
		status = model.StatusActive
	}

	// Step 5: Park behind a confirmation when requested
	if in.RequireConfirmation {
		if s.confirmations == nil {
			return nil, errs.NewServiceUnavailable("confirmation workflow not configured")
		}
		token, err := s.confirmations.RequestSubscription(ctx, list, in.Origin, model.SubscribeIntent{
			Attributes: attrs,
			Status:     status,
		})
		if err != nil {
			return nil, err
		}
		return &SubscribeResult{ID: token, Pending: true}, nil
	}

	// Step 6: Commit, refreshing an existing record for the address
	existing, revision, err := s.subscribers.GetSubscriberByEmail(ctx, list.ID, in.Email)
	switch {
	case err == nil:
		sub, err := s.refreshSubscriber(ctx, list, existing, revision, attrs, in.ForceSubscribe)
		if err != nil {
			return nil, err
		}
		return &SubscribeResult{ID: sub.CID, Subscriber: sub}, nil
	case isNotFound(err):
	default:
		slog.ErrorContext(ctx, "failed to look up subscriber", "error", err, "list_id", list.ID)
		return nil, err
	}

	sub, err := s.createSubscriber(ctx, list, attrs, status, in.Origin)
	if err != nil {
		return nil, err
	}
	return &SubscribeResult{ID: sub.CID, Subscriber: sub}, nil
}

// Unsubscribe moves the subscriber for EMAIL to unsubscribed. Repeating it on
// an unsubscribed record changes nothing.
func (s *SubscriptionStateMachine) Unsubscribe(ctx context.Context, in *AddressInput) (_ *model.Subscriber, err error) {
	defer s.record(OperationUnsubscribe, &err)

	list, err := s.resolveList(ctx, in.ListID, in.IDType)
	if err != nil {
		return nil, err
	}
	if in.Email == "" {
		return nil, errs.NewValidation("missing EMAIL")
	}

	sub, revision, err := s.subscribers.GetSubscriberByEmail(ctx, list.ID, in.Email)
	if err != nil {
		return nil, err
	}
	if sub.Status == model.StatusUnsubscribed {
		slog.DebugContext(ctx, "subscriber already unsubscribed", "subscriber_cid", sub.CID)
		return sub, nil
	}

	now := s.now().UTC()
	sub.Status = model.StatusUnsubscribed
	sub.UnsubscribedAt = &now
	sub.UpdatedAt = now

	updated, revision, err := s.subscribers.UpdateSubscriber(ctx, sub, revision)
	if err != nil {
		slog.ErrorContext(ctx, "failed to unsubscribe", "error", err, "subscriber_cid", sub.CID)
		return nil, err
	}

	slog.InfoContext(ctx, "subscriber unsubscribed",
		"subscriber_cid", updated.CID,
		"list_id", list.ID,
		"revision", revision,
	)

	s.publishEvents(ctx, model.NewSubscriberEvent(ctx, model.ActionUnsubscribed, list, updated))
	return updated, nil
}

// Delete removes the subscriber for EMAIL from the list.
func (s *SubscriptionStateMachine) Delete(ctx context.Context, in *AddressInput) (_ *model.Subscriber, err error) {
	defer s.record(OperationDelete, &err)

	list, err := s.resolveList(ctx, in.ListID, in.IDType)
	if err != nil {
		return nil, err
	}
	if in.Email == "" {
		return nil, errs.NewValidation("missing EMAIL")
	}

	found, _, err := s.subscribers.GetSubscriberByEmail(ctx, list.ID, in.Email)
	if err != nil {
		return nil, err
	}

	// Remove by cid with the record's current revision
	sub, revision, err := s.subscribers.GetSubscriberByCID(ctx, found.CID)
	if err != nil {
		return nil, err
	}
	if err := s.subscribers.DeleteSubscriber(ctx, sub, revision); err != nil {
		slog.ErrorContext(ctx, "failed to delete subscriber", "error", err, "subscriber_cid", sub.CID)
		return nil, err
	}

	slog.InfoContext(ctx, "subscriber deleted",
		"subscriber_cid", sub.CID,
		"list_id", list.ID,
	)

	s.publishEvents(ctx, model.NewSubscriberEvent(ctx, model.ActionDeleted, list, sub))
	return sub, nil
}

// ChangeAddress moves a subscription from EMAILOLD to EMAILNEW. Every gate
// runs before anything is written.
func (s *SubscriptionStateMachine) ChangeAddress(ctx context.Context, in *ChangeAddressInput) (result *ChangeAddressResult, err error) {
	defer s.record(OperationChangeAddress, &err)

	// Gate a: both addresses
	if in.OldEmail == "" || in.NewEmail == "" {
		return nil, errs.NewValidation("missing EMAILOLD or EMAILNEW")
	}

	// Gate b: list
	list, err := s.resolveList(ctx, in.ListID, in.IDType)
	if err != nil {
		return nil, err
	}

	// Gate c: blacklist
	if s.blacklist != nil {
		if err := s.blacklist.Ensure(ctx, in.NewEmail, "new email is blacklisted"); err != nil {
			return nil, err
		}
	}

	// Gate d: existing subscription
	sub, revision, err := s.subscribers.GetSubscriberByEmail(ctx, list.ID, in.OldEmail)
	if err != nil {
		return nil, err
	}

	// Gate e: new address valid for this subscription
	stale, staleRevision, err := s.validator.ValidateChange(ctx, sub, in.NewEmail)
	if err != nil {
		return nil, err
	}

	if in.RequireConfirmation {
		if s.confirmations == nil {
			return nil, errs.NewServiceUnavailable("confirmation workflow not configured")
		}
		token, err := s.confirmations.RequestAddressChange(ctx, list, in.Origin, model.AddressChangeIntent{
			SubscriberCID: sub.CID,
			OldEmail:      sub.Email,
			NewEmail:      in.NewEmail,
		})
		if err != nil {
			return nil, err
		}
		return &ChangeAddressResult{ID: token, Pending: true, Subscriber: sub}, nil
	}

	// Mutation: drop a stale holder of the new address, then move
	events := make([]*model.SubscriberEvent, 0, 2)
	if stale != nil {
		if err := s.subscribers.DeleteSubscriber(ctx, stale, staleRevision); err != nil {
			slog.ErrorContext(ctx, "failed to remove stale holder of new address",
				"error", err,
				"subscriber_cid", stale.CID,
			)
			return nil, err
		}
		events = append(events, model.NewSubscriberEvent(ctx, model.ActionDeleted, list, stale))
	}

	previous := sub.Email
	sub.Email = in.NewEmail
	sub.UpdatedAt = s.now().UTC()

	updated, revision, err := s.subscribers.UpdateSubscriber(ctx, sub, revision)
	if err != nil {
		slog.ErrorContext(ctx, "failed to change subscriber address",
			"error", err,
			"subscriber_cid", sub.CID,
		)
		return nil, err
	}

	slog.InfoContext(ctx, "subscriber address changed",
		"subscriber_cid", updated.CID,
		"old_email", redaction.RedactEmail(previous),
		"new_email", redaction.RedactEmail(updated.Email),
		"revision", revision,
	)

	changed := model.NewSubscriberEvent(ctx, model.ActionAddressChanged, list, updated)
	changed.PreviousEmail = previous
	events = append(events, changed)
	s.publishEvents(ctx, events...)

	return &ChangeAddressResult{ID: updated.CID, Subscriber: updated}, nil
}

// resolveList turns the path reference into a list. A malformed reference is
// Forbidden; lookup errors pass through.
func (s *SubscriptionStateMachine) resolveList(ctx context.Context, raw, idType string) (*model.List, error) {
	ref, err := model.NewListRef(raw, idType)
	if err != nil {
		return nil, err
	}

	var list *model.List
	if ref.ByID {
		list, err = s.lists.GetListByID(ctx, ref.ID)
	} else {
		list, err = s.lists.GetListByCID(ctx, ref.CID)
	}
	if err != nil {
		slog.DebugContext(ctx, "list lookup failed", "list", ref.String(), "error", err)
		return nil, err
	}
	return list, nil
}

// resolveFields loads the list's field schema. Failures leave the schema
// empty.
func (s *SubscriptionStateMachine) resolveFields(ctx context.Context, list *model.List) []model.FieldDefinition {
	if s.fields == nil {
		return nil
	}
	fields, err := s.fields.ListFields(ctx, list.ID)
	if err != nil {
		slog.WarnContext(ctx, "field schema unavailable, merging without custom fields",
			"error", err,
			"list_id", list.ID,
		)
		return nil
	}
	return fields
}

func (s *SubscriptionStateMachine) createSubscriber(ctx context.Context, list *model.List, attrs model.SubscriberAttributes, status model.SubscriberStatus, origin string) (*model.Subscriber, error) {
	now := s.now().UTC()
	sub := &model.Subscriber{
		CID:         opaque.New(),
		ListID:      list.ID,
		Status:      status,
		Source:      constants.SourceAPI,
		OptInOrigin: origin,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	sub.Apply(attrs)

	// For rollback purposes
	var (
		keys             []string
		rollbackRequired bool
	)
	defer func() {
		if r := recover(); r != nil {
			s.deleteKeys(ctx, keys, true)
			panic(r)
		}
		if rollbackRequired {
			s.deleteKeys(ctx, keys, true)
		}
	}()

	// Reserve (list, email)
	constraintKey, err := s.subscribers.UniqueSubscriberEmail(ctx, sub)
	if err != nil {
		return nil, err
	}
	if constraintKey != "" {
		keys = append(keys, constraintKey)
	}

	created, revision, err := s.subscribers.CreateSubscriber(ctx, sub)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create subscriber",
			"error", err,
			"list_id", list.ID,
			"email", redaction.RedactEmail(sub.Email),
		)
		rollbackRequired = true
		return nil, err
	}

	slog.InfoContext(ctx, "subscriber created",
		"subscriber_cid", created.CID,
		"subscriber_id", created.ID,
		"status", created.Status,
		"revision", revision,
	)

	s.publishEvents(ctx, model.NewSubscriberEvent(ctx, model.ActionCreated, list, created))
	return created, nil
}

func (s *SubscriptionStateMachine) refreshSubscriber(ctx context.Context, list *model.List, existing *model.Subscriber, revision uint64, attrs model.SubscriberAttributes, force bool) (*model.Subscriber, error) {
	existing.Apply(attrs)
	if force {
		existing.Status = model.StatusActive
		existing.UnsubscribedAt = nil
	}
	existing.UpdatedAt = s.now().UTC()

	updated, revision, err := s.subscribers.UpdateSubscriber(ctx, existing, revision)
	if err != nil {
		slog.ErrorContext(ctx, "failed to update subscriber", "error", err, "subscriber_cid", existing.CID)
		return nil, err
	}

	slog.InfoContext(ctx, "subscriber updated",
		"subscriber_cid", updated.CID,
		"status", updated.Status,
		"revision", revision,
	)

	s.publishEvents(ctx, model.NewSubscriberEvent(ctx, model.ActionUpdated, list, updated))
	return updated, nil
}

// deleteKeys removes keys by getting their revision and deleting them
func (s *SubscriptionStateMachine) deleteKeys(ctx context.Context, keys []string, isRollback bool) {
	if len(keys) == 0 {
		return
	}

	slog.DebugContext(ctx, "deleting keys",
		"keys", keys,
		"is_rollback", isRollback,
	)

	for _, key := range keys {
		rev, err := s.subscribers.GetKeyRevision(ctx, key)
		if err != nil {
			slog.ErrorContext(ctx, "failed to get revision for key deletion",
				"key", key,
				"error", err,
				"is_rollback", isRollback,
			)
			continue
		}

		if err := s.subscribers.Delete(ctx, key, rev); err != nil {
			slog.ErrorContext(ctx, "failed to delete key",
				"key", key,
				"error", err,
				"is_rollback", isRollback,
			)
			continue
		}
		slog.DebugContext(ctx, "successfully deleted key",
			"key", key,
			"is_rollback", isRollback,
		)
	}
}

// publishEvents publishes lifecycle events. Failures are logged only; the
// mutation has already been committed.
func (s *SubscriptionStateMachine) publishEvents(ctx context.Context, events ...*model.SubscriberEvent) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "publisher not available, skipping subscriber events")
		return
	}

	fns := make([]func() error, 0, len(events))
	for _, event := range events {
		fns = append(fns, func() error {
			return s.publisher.Event(ctx, event.Subject(), event)
		})
	}

	pool := concurrent.NewWorkerPool(constants.DefaultEventPublishWorkers)
	if err := pool.Run(ctx, fns...); err != nil {
		slog.ErrorContext(ctx, "failed to publish subscriber events", "error", err)
	}
}

func (s *SubscriptionStateMachine) record(operation string, err *error) {
	metrics.LifecycleOperations.WithLabelValues(operation, metrics.Outcome(*err)).Inc()
}

func isNotFound(err error) bool {
	var notFound errs.NotFound
	return stderrors.As(err, &notFound)
}
