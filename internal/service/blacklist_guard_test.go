// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/infrastructure/mock"
	errs "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
)

func TestBlacklistGuard(t *testing.T) {
	ctx := context.Background()
	repo := mock.NewMockRepository()
	repo.ClearAll()
	guard := NewBlacklistGuard(mock.NewMockBlacklistRepository(repo))

	blacklisted, err := guard.IsBlacklisted(ctx, "spam@example.org")
	require.NoError(t, err)
	assert.False(t, blacklisted)

	require.NoError(t, guard.Add(ctx, "  Spam@Example.org "))

	blacklisted, err = guard.IsBlacklisted(ctx, "SPAM@example.org")
	require.NoError(t, err)
	assert.True(t, blacklisted)

	err = guard.Ensure(ctx, "spam@example.org", "new email is blacklisted")
	var conflict errs.Conflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "new email is blacklisted", conflict.Error())

	assert.NoError(t, guard.Ensure(ctx, "ham@example.org", "new email is blacklisted"))

	// adding twice is not an error
	require.NoError(t, guard.Add(ctx, "spam@example.org"))

	require.NoError(t, guard.Remove(ctx, "spam@example.org"))
	blacklisted, err = guard.IsBlacklisted(ctx, "spam@example.org")
	require.NoError(t, err)
	assert.False(t, blacklisted)

	// removing a missing entry is not an error
	assert.NoError(t, guard.Remove(ctx, "spam@example.org"))
}

func TestBlacklistGuard_Errors(t *testing.T) {
	ctx := context.Background()
	repo := mock.NewMockRepository()
	repo.ClearAll()
	guard := NewBlacklistGuard(mock.NewMockBlacklistRepository(repo))

	var validation errs.Validation
	assert.ErrorAs(t, guard.Add(ctx, "  "), &validation)
	assert.ErrorAs(t, guard.Remove(ctx, ""), &validation)

	blacklisted, err := guard.IsBlacklisted(ctx, "")
	require.NoError(t, err)
	assert.False(t, blacklisted)

	repo.SetErrorForOperation("IsBlacklisted", errs.NewServiceUnavailable("kv down"))
	var unavailable errs.ServiceUnavailable
	assert.ErrorAs(t, guard.Ensure(ctx, "a@example.org", "blacklisted"), &unavailable)
}
