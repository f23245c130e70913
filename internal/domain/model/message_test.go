// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
)

func TestNewSubscriberEvent(t *testing.T) {
	list := &List{ID: 7, CID: "rJkG0qz"}
	sub := &Subscriber{ID: 42, CID: "Hy3fQx", ListID: 7, Email: "a@example.com", Status: StatusActive, Source: constants.SourceAPI}

	tests := []struct {
		name     string
		ctx      func() context.Context
		action   MessageAction
		list     *List
		sub      *Subscriber
		validate func(t *testing.T, e *SubscriberEvent)
	}{
		{
			name: "headers propagated from context",
			ctx: func() context.Context {
				ctx := context.WithValue(context.Background(), constants.RequestIDContextKey, "req-1")
				return context.WithValue(ctx, constants.PrincipalContextID, "svc-newsletter")
			},
			action: ActionCreated,
			list:   list,
			sub:    sub,
			validate: func(t *testing.T, e *SubscriberEvent) {
				assert.Equal(t, "req-1", e.Headers[constants.RequestIDHeader])
				assert.Equal(t, "svc-newsletter", e.Headers["principal"])
				assert.Equal(t, int64(42), e.SubscriberID)
				assert.Equal(t, "rJkG0qz", e.ListCID)
				assert.Equal(t, StatusActive, e.Status)
				assert.False(t, e.OccurredAt.IsZero())
			},
		},
		{
			name:   "empty context yields empty headers",
			ctx:    context.Background,
			action: ActionUnsubscribed,
			list:   list,
			sub:    sub,
			validate: func(t *testing.T, e *SubscriberEvent) {
				assert.Empty(t, e.Headers)
				assert.Equal(t, "lfx.subscriber-api.subscriber.unsubscribed", e.Subject())
			},
		},
		{
			name:   "nil list and subscriber tolerated",
			ctx:    context.Background,
			action: ActionDeleted,
			validate: func(t *testing.T, e *SubscriberEvent) {
				assert.Zero(t, e.ListID)
				assert.Empty(t, e.SubscriberCID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewSubscriberEvent(tt.ctx(), tt.action, tt.list, tt.sub)
			require.NotNil(t, event)
			assert.Equal(t, tt.action, event.Action)
			tt.validate(t, event)
		})
	}
}
