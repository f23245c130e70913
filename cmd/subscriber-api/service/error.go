// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	lfxerrors "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
)

// wrapError maps a typed error to the status code of the error envelope.
// Client errors are logged at warn, everything else at error.
func wrapError(ctx context.Context, err error) int {
	var (
		validation lfxerrors.Validation
		forbidden  lfxerrors.Forbidden
		notFound   lfxerrors.NotFound
		conflict   lfxerrors.Conflict
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &forbidden):
		status = http.StatusForbidden
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &conflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request failed", "error", err)
	} else {
		slog.WarnContext(ctx, "request rejected", "error", err, "status", status)
	}
	return status
}
