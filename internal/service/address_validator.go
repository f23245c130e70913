// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"strings"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	errs "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/redaction"
)

// ErrInvalidAddress is wrapped by every syntactic rejection.
var ErrInvalidAddress = errors.New("invalid email address")

type mxLookupFunc func(ctx context.Context, domain string) ([]*net.MX, error)

// AddressValidator checks address syntax and, for address changes, whether
// the new address is free on the list.
type AddressValidator struct {
	subscribers port.SubscriberReader
	checkMX     bool
	lookupMX    mxLookupFunc
}

// addressValidatorOption defines a function type for setting validator options
type addressValidatorOption func(*AddressValidator)

// WithMXCheck requires the address domain to publish an MX record.
func WithMXCheck(enabled bool) addressValidatorOption {
	return func(v *AddressValidator) {
		v.checkMX = enabled
	}
}

// WithMXResolver replaces the resolver used by the MX check.
func WithMXResolver(fn func(ctx context.Context, domain string) ([]*net.MX, error)) addressValidatorOption {
	return func(v *AddressValidator) {
		v.lookupMX = fn
	}
}

// NewAddressValidator creates a validator. subscribers may be nil when only
// Validate is used.
func NewAddressValidator(subscribers port.SubscriberReader, opts ...addressValidatorOption) *AddressValidator {
	v := &AddressValidator{
		subscribers: subscribers,
		lookupMX:    net.DefaultResolver.LookupMX,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate rejects anything that is not a bare addr-spec with a dotted
// domain. The returned error wraps ErrInvalidAddress.
func (v *AddressValidator) Validate(ctx context.Context, email string) error {
	parsed, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if parsed.Name != "" || parsed.Address != email {
		return fmt.Errorf("%w: display names are not accepted", ErrInvalidAddress)
	}

	at := strings.LastIndexByte(email, '@')
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return fmt.Errorf("%w: domain %q is not fully qualified", ErrInvalidAddress, domain)
	}

	if !v.checkMX {
		return nil
	}

	records, err := v.lookupMX(ctx, domain)
	if err != nil || len(records) == 0 {
		slog.DebugContext(ctx, "mx lookup rejected address",
			"domain", domain,
			"error", err,
		)
		return fmt.Errorf("%w: domain %q does not accept mail", ErrInvalidAddress, domain)
	}
	return nil
}

// ValidateChange checks newEmail in the context of sub's subscription: the
// address must be valid, sub must be active, and no other active subscriber
// may hold newEmail on the list. A non-active holder is returned with its
// revision so the caller can remove it when the change is applied. Every
// rejection is a Conflict.
func (v *AddressValidator) ValidateChange(ctx context.Context, sub *model.Subscriber, newEmail string) (*model.Subscriber, uint64, error) {
	if err := v.Validate(ctx, newEmail); err != nil {
		return nil, 0, errs.NewConflict("new email not valid", err)
	}
	if !sub.IsActive() {
		return nil, 0, errs.NewConflict("new email not valid", fmt.Errorf("subscription is %s", sub.Status))
	}
	if model.NormalizeEmail(sub.Email) == model.NormalizeEmail(newEmail) {
		return nil, 0, nil
	}

	holder, revision, err := v.subscribers.GetSubscriberByEmail(ctx, sub.ListID, newEmail)
	if err != nil {
		var notFound errs.NotFound
		if errors.As(err, &notFound) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	if holder.CID == sub.CID {
		return nil, 0, nil
	}
	if holder.IsActive() {
		slog.InfoContext(ctx, "new address already subscribed",
			"list_id", sub.ListID,
			"email", redaction.RedactEmail(newEmail),
			"holder_cid", holder.CID,
		)
		return nil, 0, errs.NewConflict("new email not valid", errors.New("address already subscribed to this list"))
	}

	return holder, revision, nil
}
