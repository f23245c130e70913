// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/metrics"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	errs "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/log"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/opaque"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/redaction"
)

// ConfirmationWorkflow defers a subscribe or address change behind an opaque
// token and asks the address owner to confirm it.
//
// The pending record is written first and the notice sent second. When the
// notice cannot be sent the record is deleted again, so a token only
// outlives the request if the owner was actually asked to confirm.
type ConfirmationWorkflow struct {
	store    port.ConfirmationStore
	notifier port.ConfirmationNotifier
	ttl      time.Duration
	now      func() time.Time
}

// NewConfirmationWorkflow creates a workflow. A non-positive ttl falls back
// to constants.DefaultConfirmationTTL.
func NewConfirmationWorkflow(store port.ConfirmationStore, notifier port.ConfirmationNotifier, ttl time.Duration) *ConfirmationWorkflow {
	if ttl <= 0 {
		ttl = constants.DefaultConfirmationTTL
	}
	return &ConfirmationWorkflow{
		store:    store,
		notifier: notifier,
		ttl:      ttl,
		now:      time.Now,
	}
}

// RequestSubscription parks a subscribe and notifies the subscribing address.
func (w *ConfirmationWorkflow) RequestSubscription(ctx context.Context, list *model.List, origin string, intent model.SubscribeIntent) (string, error) {
	attrs := intent.Attributes
	return w.request(ctx, list, model.ConfirmationSubscribe, origin, attrs.Email, intent, &attrs)
}

// RequestAddressChange parks an address change and notifies the new address.
func (w *ConfirmationWorkflow) RequestAddressChange(ctx context.Context, list *model.List, origin string, intent model.AddressChangeIntent) (string, error) {
	return w.request(ctx, list, model.ConfirmationChangeAddress, origin, intent.NewEmail, intent, nil)
}

func (w *ConfirmationWorkflow) request(
	ctx context.Context,
	list *model.List,
	action model.ConfirmationAction,
	origin, recipient string,
	intent any,
	attrs *model.SubscriberAttributes,
) (token string, err error) {
	defer func() {
		metrics.ConfirmationDispatches.WithLabelValues(string(action), metrics.Outcome(err)).Inc()
	}()

	payload, err := model.EncodeIntent(intent)
	if err != nil {
		return "", errs.NewUnexpected("failed to encode confirmation payload", err)
	}

	now := w.now().UTC()
	pending := &model.PendingConfirmation{
		Token:     opaque.New(),
		ListID:    list.ID,
		ListCID:   list.CID,
		Action:    action,
		Origin:    origin,
		Recipient: recipient,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(w.ttl),
	}

	// Step 1: persist the pending action
	if err := w.store.CreatePendingConfirmation(ctx, pending); err != nil {
		slog.ErrorContext(ctx, "failed to store pending confirmation",
			"error", err,
			"action", action,
			"list_id", list.ID,
		)
		return "", err
	}

	slog.DebugContext(ctx, "pending confirmation stored",
		"token", pending.Token,
		"action", action,
		"expires_at", pending.ExpiresAt,
	)

	// Step 2: ask the owner to confirm
	notice := &model.ConfirmationNotice{
		Token:      pending.Token,
		Action:     action,
		ListID:     list.ID,
		ListCID:    list.CID,
		ListName:   list.Name,
		Recipient:  recipient,
		Attributes: attrs,
		ExpiresAt:  pending.ExpiresAt,
	}
	if err := w.notifier.SendConfirmation(ctx, notice); err != nil {
		slog.ErrorContext(ctx, "failed to send confirmation notice",
			"error", err,
			"token", pending.Token,
			"recipient", redaction.RedactEmail(recipient),
		)
		w.discard(ctx, pending.Token)
		return "", errs.NewServiceUnavailable("failed to send confirmation", err)
	}

	slog.InfoContext(ctx, "confirmation requested",
		"token", pending.Token,
		"action", action,
		"list_id", list.ID,
		"recipient", redaction.RedactEmail(recipient),
	)

	return pending.Token, nil
}

// discard removes a pending record whose notice was never sent.
func (w *ConfirmationWorkflow) discard(ctx context.Context, token string) {
	if err := w.store.DeletePendingConfirmation(ctx, token); err != nil {
		slog.ErrorContext(ctx, "orphaned pending confirmation left in store",
			"error", err,
			"token", token,
			log.PriorityCritical(),
		)
		return
	}
	slog.DebugContext(ctx, "pending confirmation discarded", "token", token)
}
