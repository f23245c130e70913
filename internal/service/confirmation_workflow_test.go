// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/infrastructure/mock"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	errs "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/opaque"
)

func TestConfirmationWorkflow_RequestSubscription(t *testing.T) {
	repo := mock.NewMockRepository()
	repo.ClearAll()
	notifier := mock.NewMockConfirmationNotifier()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	workflow := NewConfirmationWorkflow(mock.NewMockConfirmationStore(repo), notifier, time.Hour)
	workflow.now = func() time.Time { return fixed }

	list := &model.List{ID: 4, CID: "news", Name: "News"}
	first := "Ann"
	intent := model.SubscribeIntent{
		Attributes: model.SubscriberAttributes{Email: "ann@example.org", FirstName: &first},
		Status:     model.StatusActive,
	}

	token, err := workflow.RequestSubscription(context.Background(), list, "198.51.100.4", intent)
	require.NoError(t, err)
	assert.True(t, opaque.Valid(token))

	pending := repo.GetPendingConfirmation(token)
	require.NotNil(t, pending)
	assert.Equal(t, model.ConfirmationSubscribe, pending.Action)
	assert.Equal(t, int64(4), pending.ListID)
	assert.Equal(t, "198.51.100.4", pending.Origin)
	assert.Equal(t, "ann@example.org", pending.Recipient)
	assert.Equal(t, fixed.Add(time.Hour), pending.ExpiresAt)

	decoded, err := pending.SubscribeIntent()
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, decoded.Status)
	require.NotNil(t, decoded.Attributes.FirstName)
	assert.Equal(t, "Ann", *decoded.Attributes.FirstName)

	notices := notifier.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, token, notices[0].Token)
	assert.Equal(t, "News", notices[0].ListName)
	require.NotNil(t, notices[0].Attributes)
}

func TestConfirmationWorkflow_RequestAddressChange(t *testing.T) {
	repo := mock.NewMockRepository()
	repo.ClearAll()
	notifier := mock.NewMockConfirmationNotifier()
	workflow := NewConfirmationWorkflow(mock.NewMockConfirmationStore(repo), notifier, 0)

	intent := model.AddressChangeIntent{SubscriberCID: "sub-1", OldEmail: "old@example.org", NewEmail: "new@example.org"}
	token, err := workflow.RequestAddressChange(context.Background(), &model.List{ID: 1, CID: "news"}, "", intent)
	require.NoError(t, err)

	pending := repo.GetPendingConfirmation(token)
	require.NotNil(t, pending)
	assert.Equal(t, "new@example.org", pending.Recipient)
	assert.Equal(t, constants.DefaultConfirmationTTL, pending.ExpiresAt.Sub(pending.CreatedAt))

	decoded, err := pending.AddressChangeIntent()
	require.NoError(t, err)
	assert.Equal(t, intent, decoded)

	require.Len(t, notifier.Notices(), 1)
	assert.Nil(t, notifier.Notices()[0].Attributes)
}

func TestConfirmationWorkflow_Failures(t *testing.T) {
	list := &model.List{ID: 1, CID: "news"}
	intent := model.SubscribeIntent{Attributes: model.SubscriberAttributes{Email: "a@example.org"}, Status: model.StatusPartial}

	testCases := []struct {
		name          string
		setup         func(*mock.MockRepository, *mock.MockConfirmationNotifier)
		expectedError error
		remaining     int
	}{
		{
			name: "store failure sends nothing",
			setup: func(repo *mock.MockRepository, _ *mock.MockConfirmationNotifier) {
				repo.SetErrorForOperation("CreatePendingConfirmation", errs.NewServiceUnavailable("kv down"))
			},
			expectedError: errs.ServiceUnavailable{},
			remaining:     0,
		},
		{
			name: "notify failure discards the pending record",
			setup: func(_ *mock.MockRepository, notifier *mock.MockConfirmationNotifier) {
				notifier.SetError(errors.New("smtp relay unreachable"))
			},
			expectedError: errs.ServiceUnavailable{},
			remaining:     0,
		},
		{
			name: "failed discard leaves the record behind",
			setup: func(repo *mock.MockRepository, notifier *mock.MockConfirmationNotifier) {
				notifier.SetError(errors.New("smtp relay unreachable"))
				repo.SetErrorForOperation("DeletePendingConfirmation", errors.New("kv down"))
			},
			expectedError: errs.ServiceUnavailable{},
			remaining:     1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := mock.NewMockRepository()
			repo.ClearAll()
			notifier := mock.NewMockConfirmationNotifier()
			tc.setup(repo, notifier)

			workflow := NewConfirmationWorkflow(mock.NewMockConfirmationStore(repo), notifier, time.Hour)
			token, err := workflow.RequestSubscription(context.Background(), list, "", intent)

			require.Error(t, err)
			assert.IsType(t, tc.expectedError, err)
			assert.Empty(t, token)
			assert.Equal(t, tc.remaining, repo.GetConfirmationCount())
		})
	}
}
