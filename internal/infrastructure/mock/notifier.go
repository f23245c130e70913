// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mock

import (
	"context"
	"log/slog"
	"sync"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/redaction"
)

// MockConfirmationNotifier records confirmation notices instead of sending them
type MockConfirmationNotifier struct {
	mu      sync.Mutex
	notices []*model.ConfirmationNotice
	err     error
}

var _ port.ConfirmationNotifier = (*MockConfirmationNotifier)(nil)

// NewMockConfirmationNotifier creates a recording notifier
func NewMockConfirmationNotifier() *MockConfirmationNotifier {
	return &MockConfirmationNotifier{}
}

// SendConfirmation records the notice, or returns the configured error
func (n *MockConfirmationNotifier) SendConfirmation(ctx context.Context, notice *model.ConfirmationNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.err != nil {
		return n.err
	}

	n.notices = append(n.notices, notice)
	slog.InfoContext(ctx, "mock confirmation notice sent",
		"token", notice.Token,
		"action", notice.Action,
		"recipient", redaction.RedactEmail(notice.Recipient),
	)
	return nil
}

// SetError makes every following SendConfirmation call fail with err
func (n *MockConfirmationNotifier) SetError(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// Notices returns the recorded notices
func (n *MockConfirmationNotifier) Notices() []*model.ConfirmationNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*model.ConfirmationNotice(nil), n.notices...)
}
