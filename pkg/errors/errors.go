// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package errors defines the failure kinds of the subscriber lifecycle. The
// HTTP layer maps each kind to a status code, so callers pick the kind by the
// outcome the client should see, not by where the failure happened.
package errors

import (
	"errors"
	"fmt"
)

type base struct {
	message string
	err     error
}

func newBase(message string, errs []error) base {
	return base{message: message, err: errors.Join(errs...)}
}

// Error renders the message followed by the joined causes, if any.
func (b base) Error() string {
	if b.err == nil {
		return b.message
	}
	return fmt.Sprintf("%s: %v", b.message, b.err)
}

// Unwrap exposes the joined causes to errors.Is and errors.As.
func (b base) Unwrap() error {
	return b.err
}

// Validation rejects a payload or token as submitted (400).
type Validation struct{ base }

// NotFound reports a missing list, subscriber or pending confirmation (404).
type NotFound struct{ base }

// Forbidden reports an invalid access token (403).
type Forbidden struct{ base }

// Conflict reports a clash with stored state, such as a blacklisted or
// already taken address (409).
type Conflict struct{ base }

// Unexpected marks an internal failure the client cannot act on (500).
type Unexpected struct{ base }

// ServiceUnavailable marks a backing store or the notifier being unreachable.
// Readiness reports it as 503.
type ServiceUnavailable struct{ base }

// NewValidation returns a Validation error wrapping the optional causes.
func NewValidation(message string, err ...error) Validation {
	return Validation{newBase(message, err)}
}

// NewNotFound returns a NotFound error wrapping the optional causes.
func NewNotFound(message string, err ...error) NotFound {
	return NotFound{newBase(message, err)}
}

// NewForbidden returns a Forbidden error wrapping the optional causes.
func NewForbidden(message string, err ...error) Forbidden {
	return Forbidden{newBase(message, err)}
}

// NewConflict returns a Conflict error wrapping the optional causes.
func NewConflict(message string, err ...error) Conflict {
	return Conflict{newBase(message, err)}
}

// NewUnexpected returns an Unexpected error wrapping the optional causes.
func NewUnexpected(message string, err ...error) Unexpected {
	return Unexpected{newBase(message, err)}
}

// NewServiceUnavailable returns a ServiceUnavailable error wrapping the
// optional causes.
func NewServiceUnavailable(message string, err ...error) ServiceUnavailable {
	return ServiceUnavailable{newBase(message, err)}
}
