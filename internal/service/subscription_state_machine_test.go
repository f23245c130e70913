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
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/infrastructure/mock"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	errs "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
)

type stateMachineFixture struct {
	machine   *SubscriptionStateMachine
	repo      *mock.MockRepository
	publisher *mock.MockMessagePublisher
	notifier  *mock.MockConfirmationNotifier
}

func newStateMachineFixture(t *testing.T) *stateMachineFixture {
	t.Helper()

	repo := mock.NewMockRepository()
	repo.ClearAll()
	repo.AddList(&model.List{ID: 10, CID: "news", Name: "News", CreatedAt: time.Now().Add(-time.Hour)})
	repo.AddFields(10, []model.FieldDefinition{
		{Key: "company", Column: "custom_field1", Type: model.FieldTypeText},
		{Key: "interests", Type: model.FieldTypeCheckbox, Options: []model.FieldDefinition{
			{Key: "interest_cloud", Column: "custom_field2", Type: model.FieldTypeOption},
		}},
	})

	publisher := mock.NewMockMessagePublisher()
	notifier := mock.NewMockConfirmationNotifier()
	subscribers := mock.NewMockSubscriberRepository(repo)

	machine := NewSubscriptionStateMachine(
		WithListReader(mock.NewMockCatalogReader(repo)),
		WithFieldReader(mock.NewMockCatalogReader(repo)),
		WithSubscriberRepository(subscribers),
		WithBlacklistGuard(NewBlacklistGuard(mock.NewMockBlacklistRepository(repo))),
		WithAddressValidator(NewAddressValidator(subscribers)),
		WithConfirmationWorkflow(NewConfirmationWorkflow(mock.NewMockConfirmationStore(repo), notifier, time.Hour)),
		WithPublisher(publisher),
	)

	return &stateMachineFixture{machine: machine, repo: repo, publisher: publisher, notifier: notifier}
}

func subscribeInput(listID string, payload map[string]any) *SubscribeInput {
	return NewSubscribeInput(listID, NormalizePayload(payload), "192.0.2.1")
}

func TestSubscriptionStateMachine_Subscribe(t *testing.T) {
	testCases := []struct {
		name          string
		setupMock     func(*mock.MockRepository)
		input         *SubscribeInput
		expectedError error
		validate      func(t *testing.T, f *stateMachineFixture, result *SubscribeResult)
	}{
		{
			name:  "new subscriber without flags is partial",
			input: subscribeInput("news", map[string]any{"email": "ann@example.org", "first_name": "Ann", "company": "Acme", "interest_cloud": "yes"}),
			validate: func(t *testing.T, f *stateMachineFixture, result *SubscribeResult) {
				assert.False(t, result.Pending)
				require.NotNil(t, result.Subscriber)
				assert.Equal(t, result.ID, result.Subscriber.CID)

				stored := f.repo.GetSubscriber(result.ID)
				require.NotNil(t, stored)
				assert.Equal(t, model.StatusPartial, stored.Status)
				assert.Equal(t, "Ann", stored.FirstName)
				assert.Equal(t, map[string]string{"custom_field1": "Acme", "custom_field2": "1"}, stored.Fields)
				assert.Equal(t, constants.SourceAPI, stored.Source)
				assert.Equal(t, "192.0.2.1", stored.OptInOrigin)
				assert.Equal(t, []string{"lfx.subscriber-api.subscriber.created"}, f.publisher.Subjects())
			},
		},
		{
			name:  "force subscribe makes the subscriber active",
			input: subscribeInput("news", map[string]any{"EMAIL": "ann@example.org", "FORCE_SUBSCRIBE": "True"}),
			validate: func(t *testing.T, f *stateMachineFixture, result *SubscribeResult) {
				assert.Equal(t, model.StatusActive, f.repo.GetSubscriber(result.ID).Status)
			},
		},
		{
			name:  "numeric list id",
			input: subscribeInput("10", map[string]any{"EMAIL": "ann@example.org", "ID_TYPE": "id"}),
			validate: func(t *testing.T, f *stateMachineFixture, result *SubscribeResult) {
				assert.Equal(t, int64(10), f.repo.GetSubscriber(result.ID).ListID)
			},
		},
		{
			name:  "require confirmation parks the request",
			input: subscribeInput("news", map[string]any{"EMAIL": "ann@example.org", "FORCE_SUBSCRIBE": "1", "REQUIRE_CONFIRMATION": "yes"}),
			validate: func(t *testing.T, f *stateMachineFixture, result *SubscribeResult) {
				assert.True(t, result.Pending)
				assert.Nil(t, result.Subscriber)
				assert.Equal(t, 0, f.repo.GetSubscriberCount())

				pending := f.repo.GetPendingConfirmation(result.ID)
				require.NotNil(t, pending)
				intent, err := pending.SubscribeIntent()
				require.NoError(t, err)
				assert.Equal(t, model.StatusActive, intent.Status)
				assert.Equal(t, "ann@example.org", intent.Attributes.Email)

				require.Len(t, f.notifier.Notices(), 1)
				assert.Empty(t, f.publisher.Subjects())
			},
		},
		{
			name: "existing subscriber is refreshed",
			setupMock: func(repo *mock.MockRepository) {
				repo.AddSubscriber(&model.Subscriber{
					CID: "existing", ListID: 10, Email: "ann@example.org", FirstName: "Ann", LastName: "Lee",
					Status: model.StatusPartial, Fields: map[string]string{"custom_field1": "Old Co"},
				})
			},
			input: subscribeInput("news", map[string]any{"EMAIL": "ANN@example.org", "LAST_NAME": "Smith", "INTEREST_CLOUD": "1"}),
			validate: func(t *testing.T, f *stateMachineFixture, result *SubscribeResult) {
				assert.Equal(t, "existing", result.ID)
				stored := f.repo.GetSubscriber("existing")
				assert.Equal(t, "Ann", stored.FirstName)
				assert.Equal(t, "Smith", stored.LastName)
				assert.Equal(t, model.StatusPartial, stored.Status)
				assert.Equal(t, map[string]string{"custom_field1": "Old Co", "custom_field2": "1"}, stored.Fields)
				assert.Equal(t, 1, f.repo.GetSubscriberCount())
				assert.Equal(t, []string{"lfx.subscriber-api.subscriber.updated"}, f.publisher.Subjects())
			},
		},
		{
			name: "blank attributes keep stored values",
			setupMock: func(repo *mock.MockRepository) {
				repo.AddSubscriber(&model.Subscriber{
					CID: "existing", ListID: 10, Email: "ann@example.org", FirstName: "Ann", LastName: "Lee",
					Timezone: "Europe/Paris", Status: model.StatusActive,
				})
			},
			input: subscribeInput("news", map[string]any{"EMAIL": "ann@example.org", "FIRST_NAME": "", "LAST_NAME": "  ", "TIMEZONE": false}),
			validate: func(t *testing.T, f *stateMachineFixture, result *SubscribeResult) {
				stored := f.repo.GetSubscriber("existing")
				assert.Equal(t, "Ann", stored.FirstName)
				assert.Equal(t, "Lee", stored.LastName)
				assert.Equal(t, "Europe/Paris", stored.Timezone)
				assert.Equal(t, model.StatusActive, stored.Status)
			},
		},
		{
			name: "force subscribe reactivates an unsubscribed record",
			setupMock: func(repo *mock.MockRepository) {
				at := time.Now().Add(-time.Hour)
				repo.AddSubscriber(&model.Subscriber{CID: "existing", ListID: 10, Email: "ann@example.org", Status: model.StatusUnsubscribed, UnsubscribedAt: &at})
			},
			input: subscribeInput("news", map[string]any{"EMAIL": "ann@example.org", "FORCE_SUBSCRIBE": "yes"}),
			validate: func(t *testing.T, f *stateMachineFixture, result *SubscribeResult) {
				stored := f.repo.GetSubscriber("existing")
				assert.Equal(t, model.StatusActive, stored.Status)
				assert.Nil(t, stored.UnsubscribedAt)
			},
		},
		{
			name: "field schema failure is tolerated",
			setupMock: func(repo *mock.MockRepository) {
				repo.SetErrorForOperation("ListFields", errs.NewServiceUnavailable("kv down"))
			},
			input: subscribeInput("news", map[string]any{"EMAIL": "ann@example.org", "COMPANY": "Acme"}),
			validate: func(t *testing.T, f *stateMachineFixture, result *SubscribeResult) {
				assert.Empty(t, f.repo.GetSubscriber(result.ID).Fields)
			},
		},
		{
			name:          "empty list reference is forbidden",
			input:         subscribeInput(" ", map[string]any{"EMAIL": "ann@example.org"}),
			expectedError: errs.Forbidden{},
		},
		{
			name:          "non-numeric id is forbidden",
			input:         subscribeInput("abc", map[string]any{"EMAIL": "ann@example.org", "ID_TYPE": "id"}),
			expectedError: errs.Forbidden{},
		},
		{
			name:          "unknown list",
			input:         subscribeInput("missing", map[string]any{"EMAIL": "ann@example.org"}),
			expectedError: errs.NotFound{},
		},
		{
			name:          "unknown list is reported before a missing email",
			input:         subscribeInput("missing", map[string]any{}),
			expectedError: errs.NotFound{},
		},
		{
			name:          "missing email",
			input:         subscribeInput("news", map[string]any{"FIRST_NAME": "Ann"}),
			expectedError: errs.Validation{},
		},
		{
			name:          "invalid email",
			input:         subscribeInput("news", map[string]any{"EMAIL": "not-an-email"}),
			expectedError: errs.Validation{},
		},
		{
			name: "blacklisted email",
			setupMock: func(repo *mock.MockRepository) {
				repo.AddBlacklisted("ann@example.org")
			},
			input:         subscribeInput("news", map[string]any{"EMAIL": "Ann@example.org"}),
			expectedError: errs.Conflict{},
		},
		{
			name: "list storage failure passes through",
			setupMock: func(repo *mock.MockRepository) {
				repo.SetErrorForOperation("GetListByCID", errs.NewServiceUnavailable("kv down"))
			},
			input:         subscribeInput("news", map[string]any{"EMAIL": "ann@example.org"}),
			expectedError: errs.ServiceUnavailable{},
		},
		{
			name: "create failure releases the reservation",
			setupMock: func(repo *mock.MockRepository) {
				repo.SetErrorForOperation("CreateSubscriber", errs.NewServiceUnavailable("kv down"))
			},
			input:         subscribeInput("news", map[string]any{"EMAIL": "ann@example.org"}),
			expectedError: errs.ServiceUnavailable{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newStateMachineFixture(t)
			if tc.setupMock != nil {
				tc.setupMock(f.repo)
			}

			result, err := f.machine.Subscribe(context.Background(), tc.input)

			if tc.expectedError != nil {
				require.Error(t, err)
				assert.IsType(t, tc.expectedError, err)
				assert.Nil(t, result)
				assert.Equal(t, 0, f.repo.GetReservationCount())
				assert.Equal(t, 0, f.repo.GetConfirmationCount())
				return
			}

			require.NoError(t, err)
			require.NotNil(t, result)
			tc.validate(t, f, result)
		})
	}
}

func TestSubscriptionStateMachine_SubscribeNotifyFailure(t *testing.T) {
	f := newStateMachineFixture(t)
	f.notifier.SetError(errors.New("mailer down"))

	result, err := f.machine.Subscribe(context.Background(), subscribeInput("news", map[string]any{
		"EMAIL":                "ann@example.org",
		"REQUIRE_CONFIRMATION": "true",
	}))

	require.Error(t, err)
	assert.IsType(t, errs.ServiceUnavailable{}, err)
	assert.Nil(t, result)
	assert.Equal(t, 0, f.repo.GetConfirmationCount())
	assert.Equal(t, 0, f.repo.GetSubscriberCount())
}

func TestSubscriptionStateMachine_PublishFailureKeepsMutation(t *testing.T) {
	f := newStateMachineFixture(t)
	f.publisher.SetError(errors.New("nats down"))

	result, err := f.machine.Subscribe(context.Background(), subscribeInput("news", map[string]any{"EMAIL": "ann@example.org"}))

	require.NoError(t, err)
	assert.NotNil(t, f.repo.GetSubscriber(result.ID))
}

func TestSubscriptionStateMachine_Unsubscribe(t *testing.T) {
	testCases := []struct {
		name          string
		setupMock     func(*mock.MockRepository)
		input         *AddressInput
		expectedError error
		validate      func(t *testing.T, f *stateMachineFixture, sub *model.Subscriber)
	}{
		{
			name: "active subscriber is unsubscribed",
			setupMock: func(repo *mock.MockRepository) {
				repo.AddSubscriber(&model.Subscriber{ID: 41, CID: "sub", ListID: 10, Email: "ann@example.org", Status: model.StatusActive})
			},
			input: &AddressInput{ListID: "news", Email: "ann@example.org"},
			validate: func(t *testing.T, f *stateMachineFixture, sub *model.Subscriber) {
				assert.Equal(t, int64(41), sub.ID)
				stored := f.repo.GetSubscriber("sub")
				assert.Equal(t, model.StatusUnsubscribed, stored.Status)
				assert.NotNil(t, stored.UnsubscribedAt)
				assert.Equal(t, []string{"lfx.subscriber-api.subscriber.unsubscribed"}, f.publisher.Subjects())
			},
		},
		{
			name: "already unsubscribed is a no-op",
			setupMock: func(repo *mock.MockRepository) {
				repo.AddSubscriber(&model.Subscriber{ID: 41, CID: "sub", ListID: 10, Email: "ann@example.org", Status: model.StatusUnsubscribed})
				repo.SetErrorForOperation("UpdateSubscriber", errors.New("must not be called"))
			},
			input: &AddressInput{ListID: "news", Email: "ann@example.org"},
			validate: func(t *testing.T, f *stateMachineFixture, sub *model.Subscriber) {
				assert.Equal(t, int64(41), sub.ID)
				assert.Empty(t, f.publisher.Subjects())
			},
		},
		{
			name:          "missing email",
			input:         &AddressInput{ListID: "news"},
			expectedError: errs.Validation{},
		},
		{
			name:          "unknown list",
			input:         &AddressInput{ListID: "nope", Email: "ann@example.org"},
			expectedError: errs.NotFound{},
		},
		{
			name:          "unknown subscriber",
			input:         &AddressInput{ListID: "news", Email: "ann@example.org"},
			expectedError: errs.NotFound{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newStateMachineFixture(t)
			if tc.setupMock != nil {
				tc.setupMock(f.repo)
			}

			sub, err := f.machine.Unsubscribe(context.Background(), tc.input)

			if tc.expectedError != nil {
				require.Error(t, err)
				assert.IsType(t, tc.expectedError, err)
				return
			}
			require.NoError(t, err)
			tc.validate(t, f, sub)
		})
	}
}

func TestSubscriptionStateMachine_Delete(t *testing.T) {
	t.Run("subscriber is removed", func(t *testing.T) {
		f := newStateMachineFixture(t)
		f.repo.AddSubscriber(&model.Subscriber{ID: 7, CID: "sub", ListID: 10, Email: "ann@example.org", Status: model.StatusActive})

		sub, err := f.machine.Delete(context.Background(), &AddressInput{ListID: "10", IDType: "id", Email: "ANN@example.org"})

		require.NoError(t, err)
		assert.Equal(t, int64(7), sub.ID)
		assert.Equal(t, 0, f.repo.GetSubscriberCount())
		assert.Equal(t, 0, f.repo.GetReservationCount())
		assert.Equal(t, []string{"lfx.subscriber-api.subscriber.deleted"}, f.publisher.Subjects())
	})

	t.Run("unknown subscriber", func(t *testing.T) {
		f := newStateMachineFixture(t)

		_, err := f.machine.Delete(context.Background(), &AddressInput{ListID: "news", Email: "ann@example.org"})
		assert.IsType(t, errs.NotFound{}, err)
	})

	t.Run("missing email", func(t *testing.T) {
		f := newStateMachineFixture(t)

		_, err := f.machine.Delete(context.Background(), &AddressInput{ListID: "news"})
		assert.IsType(t, errs.Validation{}, err)
	})

	t.Run("storage failure", func(t *testing.T) {
		f := newStateMachineFixture(t)
		f.repo.AddSubscriber(&model.Subscriber{CID: "sub", ListID: 10, Email: "ann@example.org"})
		f.repo.SetErrorForOperation("DeleteSubscriber", errs.NewServiceUnavailable("kv down"))

		_, err := f.machine.Delete(context.Background(), &AddressInput{ListID: "news", Email: "ann@example.org"})
		assert.IsType(t, errs.ServiceUnavailable{}, err)
		assert.Equal(t, 1, f.repo.GetSubscriberCount())
	})
}

func TestSubscriptionStateMachine_ChangeAddress(t *testing.T) {
	activeOld := func(repo *mock.MockRepository) {
		repo.AddSubscriber(&model.Subscriber{ID: 5, CID: "sub", ListID: 10, Email: "old@example.org", Status: model.StatusActive})
	}

	testCases := []struct {
		name          string
		setupMock     func(*mock.MockRepository)
		input         *ChangeAddressInput
		expectedError error
		validate      func(t *testing.T, f *stateMachineFixture, result *ChangeAddressResult)
	}{
		{
			name:      "address is changed",
			setupMock: activeOld,
			input:     &ChangeAddressInput{ListID: "news", OldEmail: "old@example.org", NewEmail: "new@example.org"},
			validate: func(t *testing.T, f *stateMachineFixture, result *ChangeAddressResult) {
				assert.Equal(t, "sub", result.ID)
				assert.Equal(t, int64(5), result.Subscriber.ID)
				assert.Equal(t, "new@example.org", f.repo.GetSubscriber("sub").Email)

				_, _, err := f.repo.GetSubscriberByEmail(context.Background(), 10, "old@example.org")
				assert.IsType(t, errs.NotFound{}, err)
				assert.Equal(t, []string{"lfx.subscriber-api.subscriber.address_changed"}, f.publisher.Subjects())

				event, ok := f.publisher.Messages()[0].Message.(*model.SubscriberEvent)
				require.True(t, ok)
				assert.Equal(t, "old@example.org", event.PreviousEmail)
			},
		},
		{
			name: "stale unsubscribed holder is removed",
			setupMock: func(repo *mock.MockRepository) {
				activeOld(repo)
				repo.AddSubscriber(&model.Subscriber{CID: "stale", ListID: 10, Email: "new@example.org", Status: model.StatusUnsubscribed})
			},
			input: &ChangeAddressInput{ListID: "news", OldEmail: "old@example.org", NewEmail: "new@example.org"},
			validate: func(t *testing.T, f *stateMachineFixture, result *ChangeAddressResult) {
				assert.Nil(t, f.repo.GetSubscriber("stale"))
				assert.Equal(t, "new@example.org", f.repo.GetSubscriber("sub").Email)
				assert.ElementsMatch(t, []string{
					"lfx.subscriber-api.subscriber.deleted",
					"lfx.subscriber-api.subscriber.address_changed",
				}, f.publisher.Subjects())
			},
		},
		{
			name:      "confirmation parks the change",
			setupMock: activeOld,
			input:     &ChangeAddressInput{ListID: "news", OldEmail: "old@example.org", NewEmail: "new@example.org", RequireConfirmation: true},
			validate: func(t *testing.T, f *stateMachineFixture, result *ChangeAddressResult) {
				assert.True(t, result.Pending)
				assert.Equal(t, "old@example.org", f.repo.GetSubscriber("sub").Email)

				pending := f.repo.GetPendingConfirmation(result.ID)
				require.NotNil(t, pending)
				assert.Equal(t, "new@example.org", pending.Recipient)
				assert.Empty(t, f.publisher.Subjects())
			},
		},
		{
			name:          "both addresses required",
			setupMock:     activeOld,
			input:         &ChangeAddressInput{ListID: "news", OldEmail: "old@example.org"},
			expectedError: errs.Validation{},
		},
		{
			name:          "missing addresses reported before an unknown list",
			input:         &ChangeAddressInput{ListID: "nope"},
			expectedError: errs.Validation{},
		},
		{
			name:          "unknown list",
			input:         &ChangeAddressInput{ListID: "nope", OldEmail: "old@example.org", NewEmail: "new@example.org"},
			expectedError: errs.NotFound{},
		},
		{
			name: "blacklisted new address",
			setupMock: func(repo *mock.MockRepository) {
				activeOld(repo)
				repo.AddBlacklisted("new@example.org")
			},
			input:         &ChangeAddressInput{ListID: "news", OldEmail: "old@example.org", NewEmail: "new@example.org"},
			expectedError: errs.Conflict{},
		},
		{
			name: "blacklist is checked before the subscriber lookup",
			setupMock: func(repo *mock.MockRepository) {
				repo.AddBlacklisted("new@example.org")
			},
			input:         &ChangeAddressInput{ListID: "news", OldEmail: "old@example.org", NewEmail: "new@example.org"},
			expectedError: errs.Conflict{},
		},
		{
			name:          "unknown old address",
			input:         &ChangeAddressInput{ListID: "news", OldEmail: "old@example.org", NewEmail: "new@example.org"},
			expectedError: errs.NotFound{},
		},
		{
			name:          "invalid new address",
			setupMock:     activeOld,
			input:         &ChangeAddressInput{ListID: "news", OldEmail: "old@example.org", NewEmail: "bogus"},
			expectedError: errs.Conflict{},
		},
		{
			name: "new address held by an active subscriber",
			setupMock: func(repo *mock.MockRepository) {
				activeOld(repo)
				repo.AddSubscriber(&model.Subscriber{CID: "other", ListID: 10, Email: "new@example.org", Status: model.StatusActive})
			},
			input:         &ChangeAddressInput{ListID: "news", OldEmail: "old@example.org", NewEmail: "new@example.org"},
			expectedError: errs.Conflict{},
		},
		{
			name: "inactive subscription cannot change address",
			setupMock: func(repo *mock.MockRepository) {
				repo.AddSubscriber(&model.Subscriber{CID: "sub", ListID: 10, Email: "old@example.org", Status: model.StatusPartial})
			},
			input:         &ChangeAddressInput{ListID: "news", OldEmail: "old@example.org", NewEmail: "new@example.org"},
			expectedError: errs.Conflict{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newStateMachineFixture(t)
			if tc.setupMock != nil {
				tc.setupMock(f.repo)
			}

			result, err := f.machine.ChangeAddress(context.Background(), tc.input)

			if tc.expectedError != nil {
				require.Error(t, err)
				assert.IsType(t, tc.expectedError, err)
				assert.Nil(t, result)
				assert.Empty(t, f.publisher.Subjects())
				if sub := f.repo.GetSubscriber("sub"); sub != nil {
					assert.Equal(t, "old@example.org", sub.Email)
				}
				return
			}
			require.NoError(t, err)
			tc.validate(t, f, result)
		})
	}
}

type panickingSubscriberRepository struct {
	port.SubscriberRepository
}

func (panickingSubscriberRepository) CreateSubscriber(ctx context.Context, subscriber *model.Subscriber) (*model.Subscriber, uint64, error) {
	panic("storage driver failure")
}

func TestSubscriptionStateMachine_CreatePanicReleasesReservation(t *testing.T) {
	repo := mock.NewMockRepository()
	repo.ClearAll()
	repo.AddList(&model.List{ID: 10, CID: "news", Name: "News"})

	subscribers := panickingSubscriberRepository{SubscriberRepository: mock.NewMockSubscriberRepository(repo)}
	machine := NewSubscriptionStateMachine(
		WithListReader(mock.NewMockCatalogReader(repo)),
		WithSubscriberRepository(subscribers),
		WithAddressValidator(NewAddressValidator(subscribers)),
	)

	assert.PanicsWithValue(t, "storage driver failure", func() {
		_, _ = machine.Subscribe(context.Background(), subscribeInput("news", map[string]any{"EMAIL": "ann@example.org"}))
	})
	assert.Equal(t, 0, repo.GetReservationCount())
	assert.Equal(t, 0, repo.GetSubscriberCount())
}
