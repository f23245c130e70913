// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/infrastructure/mock"
	errs "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
)

func TestAddressValidator_Validate(t *testing.T) {
	validator := NewAddressValidator(nil)

	testCases := []struct {
		name  string
		email string
		valid bool
	}{
		{name: "simple", email: "jane@example.org", valid: true},
		{name: "plus tag", email: "jane+news@mail.example.co.uk", valid: true},
		{name: "missing at", email: "jane.example.org", valid: false},
		{name: "missing local part", email: "@example.org", valid: false},
		{name: "unqualified domain", email: "jane@localhost", valid: false},
		{name: "trailing dot", email: "jane@example.", valid: false},
		{name: "display name", email: "Jane <jane@example.org>", valid: false},
		{name: "spaces", email: "ja ne@example.org", valid: false},
		{name: "empty", email: "", valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(context.Background(), tc.email)
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidAddress)
		})
	}
}

func TestAddressValidator_ValidateMX(t *testing.T) {
	lookup := func(_ context.Context, domain string) ([]*net.MX, error) {
		switch domain {
		case "example.org":
			return []*net.MX{{Host: "mx.example.org.", Pref: 10}}, nil
		case "nomx.example.org":
			return nil, nil
		default:
			return nil, errors.New("no such host")
		}
	}
	validator := NewAddressValidator(nil, WithMXCheck(true), WithMXResolver(lookup))

	assert.NoError(t, validator.Validate(context.Background(), "jane@example.org"))
	assert.ErrorIs(t, validator.Validate(context.Background(), "jane@nomx.example.org"), ErrInvalidAddress)
	assert.ErrorIs(t, validator.Validate(context.Background(), "jane@gone.example.org"), ErrInvalidAddress)
}

func TestAddressValidator_ValidateChange(t *testing.T) {
	ctx := context.Background()

	active := &model.Subscriber{CID: "sub-active", ListID: 1, Email: "old@example.org", Status: model.StatusActive}

	testCases := []struct {
		name      string
		setupMock func(*mock.MockRepository)
		sub       *model.Subscriber
		newEmail  string
		wantStale string
		wantErr   bool
	}{
		{
			name:      "free address",
			setupMock: func(*mock.MockRepository) {},
			sub:       active,
			newEmail:  "new@example.org",
		},
		{
			name:      "same address with different case",
			setupMock: func(*mock.MockRepository) {},
			sub:       active,
			newEmail:  "OLD@example.org",
		},
		{
			name:      "invalid syntax",
			setupMock: func(*mock.MockRepository) {},
			sub:       active,
			newEmail:  "not-an-address",
			wantErr:   true,
		},
		{
			name:      "subscription not active",
			setupMock: func(*mock.MockRepository) {},
			sub:       &model.Subscriber{CID: "sub-partial", ListID: 1, Email: "p@example.org", Status: model.StatusPartial},
			newEmail:  "new@example.org",
			wantErr:   true,
		},
		{
			name: "active holder conflicts",
			setupMock: func(repo *mock.MockRepository) {
				repo.AddSubscriber(&model.Subscriber{CID: "holder", ListID: 1, Email: "new@example.org", Status: model.StatusActive})
			},
			sub:      active,
			newEmail: "new@example.org",
			wantErr:  true,
		},
		{
			name: "unsubscribed holder is returned as stale",
			setupMock: func(repo *mock.MockRepository) {
				repo.AddSubscriber(&model.Subscriber{CID: "holder", ListID: 1, Email: "new@example.org", Status: model.StatusUnsubscribed})
			},
			sub:       active,
			newEmail:  "new@example.org",
			wantStale: "holder",
		},
		{
			name: "holder on another list does not matter",
			setupMock: func(repo *mock.MockRepository) {
				repo.AddSubscriber(&model.Subscriber{CID: "holder", ListID: 2, Email: "new@example.org", Status: model.StatusActive})
			},
			sub:      active,
			newEmail: "new@example.org",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := mock.NewMockRepository()
			repo.ClearAll()
			tc.setupMock(repo)

			validator := NewAddressValidator(mock.NewMockSubscriberRepository(repo))
			stale, rev, err := validator.ValidateChange(ctx, tc.sub, tc.newEmail)

			if tc.wantErr {
				var conflict errs.Conflict
				require.ErrorAs(t, err, &conflict)
				assert.Contains(t, conflict.Error(), "new email not valid")
				assert.Nil(t, stale)
				assert.Zero(t, rev)
				return
			}
			require.NoError(t, err)
			if tc.wantStale == "" {
				assert.Nil(t, stale)
				return
			}
			require.NotNil(t, stale)
			assert.Equal(t, tc.wantStale, stale.CID)
			assert.Equal(t, uint64(1), rev)
		})
	}
}

func TestAddressValidator_ValidateChangeStorageError(t *testing.T) {
	repo := mock.NewMockRepository()
	repo.ClearAll()
	repo.SetErrorForOperation("GetSubscriberByEmail", errs.NewServiceUnavailable("kv down"))

	validator := NewAddressValidator(mock.NewMockSubscriberRepository(repo))
	sub := &model.Subscriber{CID: "sub", ListID: 1, Email: "old@example.org", Status: model.StatusActive}

	_, _, err := validator.ValidateChange(context.Background(), sub, "new@example.org")
	var unavailable errs.ServiceUnavailable
	assert.ErrorAs(t, err, &unavailable)
}
