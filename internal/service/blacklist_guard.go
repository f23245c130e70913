// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	errs "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/redaction"
)

// BlacklistGuard checks and maintains the platform-wide address blacklist.
type BlacklistGuard struct {
	repo port.BlacklistRepository
}

// NewBlacklistGuard creates a guard backed by repo.
func NewBlacklistGuard(repo port.BlacklistRepository) *BlacklistGuard {
	return &BlacklistGuard{repo: repo}
}

// IsBlacklisted reports whether email is excluded from every list.
func (g *BlacklistGuard) IsBlacklisted(ctx context.Context, email string) (bool, error) {
	normalized := model.NormalizeEmail(email)
	if normalized == "" {
		return false, nil
	}
	return g.repo.IsBlacklisted(ctx, normalized)
}

// Ensure returns a Conflict carrying message when email is blacklisted.
func (g *BlacklistGuard) Ensure(ctx context.Context, email, message string) error {
	blacklisted, err := g.IsBlacklisted(ctx, email)
	if err != nil {
		slog.ErrorContext(ctx, "blacklist check failed",
			"error", err,
			"email", redaction.RedactEmail(email),
		)
		return err
	}
	if blacklisted {
		slog.InfoContext(ctx, "blacklisted address rejected", "email", redaction.RedactEmail(email))
		return errs.NewConflict(message)
	}
	return nil
}

// Add blacklists email. Adding an existing entry is not an error.
func (g *BlacklistGuard) Add(ctx context.Context, email string) error {
	normalized := model.NormalizeEmail(email)
	if normalized == "" {
		return errs.NewValidation("missing EMAIL")
	}

	entry := &model.BlacklistEntry{
		Email:     normalized,
		CreatedAt: time.Now().UTC(),
	}
	if err := g.repo.AddBlacklistEntry(ctx, entry); err != nil {
		return err
	}

	slog.InfoContext(ctx, "address blacklisted", "email", redaction.RedactEmail(normalized))
	return nil
}

// Remove lifts the blacklist entry for email. Removing a missing entry is not
// an error.
func (g *BlacklistGuard) Remove(ctx context.Context, email string) error {
	normalized := model.NormalizeEmail(email)
	if normalized == "" {
		return errs.NewValidation("missing EMAIL")
	}

	if err := g.repo.RemoveBlacklistEntry(ctx, normalized); err != nil {
		return err
	}

	slog.InfoContext(ctx, "address removed from blacklist", "email", redaction.RedactEmail(normalized))
	return nil
}
