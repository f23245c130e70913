// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import (
	"fmt"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
)

// Source constants record how a subscriber record came to exist
const (
	// SourceAPI indicates the subscriber was written directly through the API
	SourceAPI = "api"

	// SourceConfirmation indicates the subscriber was written after the
	// address owner redeemed a confirmation
	SourceConfirmation = "confirmation"

	// SourceMock indicates the subscriber was seeded by mock infrastructure
	SourceMock = "mock"
)

// ValidateSource validates that the source is one of the allowed values
func ValidateSource(source string) error {
	switch source {
	case SourceAPI, SourceConfirmation, SourceMock:
		return nil
	case "":
		return errors.NewValidation("source is required")
	default:
		return errors.NewValidation(
			fmt.Sprintf("unsupported source: %s (must be api, confirmation, or mock)", source))
	}
}
