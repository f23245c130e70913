// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package postgres provides the Postgres-backed platform blacklist.
package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/redaction"

	// registers the "postgres" driver
	_ "github.com/lib/pq"
)

const (
	queryIsBlacklisted = `SELECT EXISTS (SELECT 1 FROM subscriber_blacklist WHERE email = $1)`
	queryAddEntry      = `INSERT INTO subscriber_blacklist (email, created_at) VALUES ($1, $2) ON CONFLICT (email) DO NOTHING`
	queryRemoveEntry   = `DELETE FROM subscriber_blacklist WHERE email = $1`
)

// blacklistRepository stores normalized addresses in subscriber_blacklist.
type blacklistRepository struct {
	db *sql.DB
}

var _ port.BlacklistRepository = (*blacklistRepository)(nil)

// Open connects to the blacklist database and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.NewValidation("postgres DSN is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.NewValidation("invalid postgres DSN", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewServiceUnavailable("postgres ping failed", err)
	}
	return db, nil
}

// NewBlacklistRepository returns a BlacklistRepository backed by db.
func NewBlacklistRepository(db *sql.DB) port.BlacklistRepository {
	return &blacklistRepository{db: db}
}

// IsBlacklisted reports whether the normalized address has a row.
func (r *blacklistRepository) IsBlacklisted(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, queryIsBlacklisted, model.NormalizeEmail(email)).Scan(&exists); err != nil {
		slog.ErrorContext(ctx, "failed to check blacklist", "error", err)
		return false, errors.NewServiceUnavailable("failed to check blacklist", err)
	}
	return exists, nil
}

// AddBlacklistEntry inserts the address; an existing row is left untouched.
func (r *blacklistRepository) AddBlacklistEntry(ctx context.Context, entry *model.BlacklistEntry) error {
	email := model.NormalizeEmail(entry.Email)
	if _, err := r.db.ExecContext(ctx, queryAddEntry, email, entry.CreatedAt); err != nil {
		slog.ErrorContext(ctx, "failed to add blacklist entry", "error", err, "email", redaction.RedactEmail(email))
		return errors.NewServiceUnavailable("failed to add blacklist entry", err)
	}
	return nil
}

// RemoveBlacklistEntry deletes the address; zero affected rows is fine.
func (r *blacklistRepository) RemoveBlacklistEntry(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, queryRemoveEntry, model.NormalizeEmail(email))
	if err != nil {
		slog.ErrorContext(ctx, "failed to remove blacklist entry", "error", err)
		return errors.NewServiceUnavailable("failed to remove blacklist entry", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		slog.DebugContext(ctx, "address was not blacklisted", "email", redaction.RedactEmail(email))
	}
	return nil
}

type readiness struct {
	db *sql.DB
}

// NewReadinessChecker reports the database as ready when it answers a ping
func NewReadinessChecker(db *sql.DB) port.ReadinessChecker {
	return readiness{db: db}
}

func (r readiness) IsReady(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return errors.NewServiceUnavailable("postgres is not ready", err)
	}
	return nil
}
