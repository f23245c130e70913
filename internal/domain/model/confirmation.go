// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package model

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ConfirmationAction is the deferred action behind a confirmation token.
type ConfirmationAction string

// Confirmation actions.
const (
	ConfirmationSubscribe     ConfirmationAction = "subscribe"
	ConfirmationChangeAddress ConfirmationAction = "change-address"
)

// PendingConfirmation is a deferred subscribe or address change waiting for
// the address owner. Payload holds a msgpack encoded SubscribeIntent or
// AddressChangeIntent depending on Action.
type PendingConfirmation struct {
	Token     string             `msgpack:"token"`
	ListID    int64              `msgpack:"list_id"`
	ListCID   string             `msgpack:"list_cid"`
	Action    ConfirmationAction `msgpack:"action"`
	Origin    string             `msgpack:"origin"`
	Recipient string             `msgpack:"recipient"`
	Payload   []byte             `msgpack:"payload"`
	CreatedAt time.Time          `msgpack:"created_at"`
	ExpiresAt time.Time          `msgpack:"expires_at"`
}

// MarshalBinary encodes the record for KV and Redis storage.
func (p *PendingConfirmation) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal(p)
}

// UnmarshalBinary decodes a stored record.
func (p *PendingConfirmation) UnmarshalBinary(data []byte) error {
	return msgpack.Unmarshal(data, p)
}

// Expired reports whether the confirmation window has passed.
func (p *PendingConfirmation) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// SubscribeIntent is the payload of a subscribe confirmation.
type SubscribeIntent struct {
	Attributes SubscriberAttributes `msgpack:"attributes"`
	Status     SubscriberStatus     `msgpack:"status"`
}

// AddressChangeIntent is the payload of a change-address confirmation.
type AddressChangeIntent struct {
	SubscriberCID string `msgpack:"subscriber_cid"`
	OldEmail      string `msgpack:"old_email"`
	NewEmail      string `msgpack:"new_email"`
}

// EncodeIntent serializes an intent into a confirmation payload.
func EncodeIntent(intent any) ([]byte, error) {
	switch intent.(type) {
	case SubscribeIntent, *SubscribeIntent, AddressChangeIntent, *AddressChangeIntent:
	default:
		return nil, fmt.Errorf("unsupported confirmation intent %T", intent)
	}
	return msgpack.Marshal(intent)
}

// SubscribeIntent decodes the payload of a subscribe confirmation.
func (p *PendingConfirmation) SubscribeIntent() (SubscribeIntent, error) {
	var intent SubscribeIntent
	if p.Action != ConfirmationSubscribe {
		return intent, fmt.Errorf("confirmation %s is a %s action", p.Token, p.Action)
	}
	err := msgpack.Unmarshal(p.Payload, &intent)
	return intent, err
}

// AddressChangeIntent decodes the payload of a change-address confirmation.
func (p *PendingConfirmation) AddressChangeIntent() (AddressChangeIntent, error) {
	var intent AddressChangeIntent
	if p.Action != ConfirmationChangeAddress {
		return intent, fmt.Errorf("confirmation %s is a %s action", p.Token, p.Action)
	}
	err := msgpack.Unmarshal(p.Payload, &intent)
	return intent, err
}

// ConfirmationNotice is what the notifier needs to ask the address owner to
// confirm.
type ConfirmationNotice struct {
	Token      string                `json:"token"`
	Action     ConfirmationAction    `json:"action"`
	ListID     int64                 `json:"list_id"`
	ListCID    string                `json:"list_cid"`
	ListName   string                `json:"list_name"`
	Recipient  string                `json:"recipient"`
	Attributes *SubscriberAttributes `json:"attributes,omitempty"`
	ExpiresAt  time.Time             `json:"expires_at"`
}
