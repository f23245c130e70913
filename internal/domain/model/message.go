// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package model

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
)

// MessageAction is the lifecycle action carried by a subscriber event
type MessageAction string

// MessageAction constants
const (
	ActionCreated        MessageAction = "created"
	ActionUpdated        MessageAction = "updated"
	ActionUnsubscribed   MessageAction = "unsubscribed"
	ActionDeleted        MessageAction = "deleted"
	ActionAddressChanged MessageAction = "address_changed"
)

// SubscriberEvent is published on NATS after a committed subscriber mutation.
// Downstream consumers (list mailers, audit) rebuild their state from these.
type SubscriberEvent struct {
	Action  MessageAction     `json:"action"`
	Headers map[string]string `json:"headers"`

	ListID        int64            `json:"list_id"`
	ListCID       string           `json:"list_cid"`
	SubscriberID  int64            `json:"subscriber_id"`
	SubscriberCID string           `json:"subscriber_cid"`
	Email         string           `json:"email"`
	PreviousEmail string           `json:"previous_email,omitempty"`
	Status        SubscriberStatus `json:"status,omitempty"`
	Source        string           `json:"source,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// NewSubscriberEvent builds an event for sub on list, propagating the
// request id and principal found in ctx.
func NewSubscriberEvent(ctx context.Context, action MessageAction, list *List, sub *Subscriber) *SubscriberEvent {
	headers := make(map[string]string)
	if requestID, ok := ctx.Value(constants.RequestIDContextKey).(string); ok && requestID != "" {
		headers[constants.RequestIDHeader] = requestID
	}
	if principal, ok := ctx.Value(constants.PrincipalContextID).(string); ok && principal != "" {
		headers["principal"] = principal
	}

	event := &SubscriberEvent{
		Action:     action,
		Headers:    headers,
		OccurredAt: time.Now().UTC(),
	}
	if list != nil {
		event.ListID = list.ID
		event.ListCID = list.CID
	}
	if sub != nil {
		event.SubscriberID = sub.ID
		event.SubscriberCID = sub.CID
		event.Email = sub.Email
		event.Status = sub.Status
		event.Source = sub.Source
	}
	return event
}

// Subject is the NATS subject the event is published on.
func (e *SubscriberEvent) Subject() string {
	return constants.SubscriberEventSubjectPrefix + string(e.Action)
}
