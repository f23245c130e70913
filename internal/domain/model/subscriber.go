// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/redaction"
)

// SubscriberStatus is the lifecycle state of a subscriber.
type SubscriberStatus string

// Subscriber statuses.
const (
	// StatusPartial is an unconfirmed subscriber written without FORCE_SUBSCRIBE.
	StatusPartial SubscriberStatus = "partial"
	// StatusActive subscribers receive list mail.
	StatusActive SubscriberStatus = "active"
	// StatusUnsubscribed subscribers are kept but no longer receive mail.
	StatusUnsubscribed SubscriberStatus = "unsubscribed"
)

// SubscriberAttributes is a candidate attribute set built from a request.
// Nil name and timezone pointers mean the key was not submitted; Fields maps
// storage columns to merged values.
type SubscriberAttributes struct {
	Email     string            `json:"email" msgpack:"email"`
	FirstName *string           `json:"first_name,omitempty" msgpack:"first_name,omitempty"`
	LastName  *string           `json:"last_name,omitempty" msgpack:"last_name,omitempty"`
	Timezone  *string           `json:"timezone,omitempty" msgpack:"timezone,omitempty"`
	Fields    map[string]string `json:"fields,omitempty" msgpack:"fields,omitempty"`
}

// Subscriber is one email address's membership record on a list.
type Subscriber struct {
	ID     int64  `json:"id" yaml:"id"`
	CID    string `json:"cid" yaml:"cid"`
	ListID int64  `json:"list_id" yaml:"list_id"`

	Email     string            `json:"email" yaml:"email"`
	FirstName string            `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName  string            `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	Timezone  string            `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Fields    map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`

	Status      SubscriberStatus `json:"status" yaml:"status"`
	Source      string           `json:"source" yaml:"source"`
	OptInOrigin string           `json:"opt_in_origin,omitempty" yaml:"opt_in_origin,omitempty"`

	CreatedAt      time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" yaml:"updated_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty" yaml:"unsubscribed_at,omitempty"`
}

// NormalizeEmail is the comparison form of an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SubscriberIndexKey is the SHA-256 of list id and normalized email. It backs
// the one-record-per-address-per-list constraint.
func SubscriberIndexKey(listID int64, email string) string {
	data := fmt.Sprintf("%d|%s", listID, NormalizeEmail(email))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// BuildIndexKey generates the uniqueness key for this subscriber.
func (s *Subscriber) BuildIndexKey(ctx context.Context) string {
	key := SubscriberIndexKey(s.ListID, s.Email)

	slog.DebugContext(ctx, "subscriber index key built",
		"list_id", s.ListID,
		"email", redaction.RedactEmail(s.Email),
		"key", key,
	)

	return key
}

// Apply overwrites the attributes present in attrs. Fields are merged column
// by column so columns missing from attrs keep their stored value.
func (s *Subscriber) Apply(attrs SubscriberAttributes) {
	if attrs.Email != "" {
		s.Email = attrs.Email
	}
	if attrs.FirstName != nil {
		s.FirstName = *attrs.FirstName
	}
	if attrs.LastName != nil {
		s.LastName = *attrs.LastName
	}
	if attrs.Timezone != nil {
		s.Timezone = *attrs.Timezone
	}
	if len(attrs.Fields) > 0 {
		if s.Fields == nil {
			s.Fields = make(map[string]string, len(attrs.Fields))
		}
		maps.Copy(s.Fields, attrs.Fields)
	}
}

// IsActive reports whether the subscriber currently receives list mail.
func (s *Subscriber) IsActive() bool {
	return s.Status == StatusActive
}
