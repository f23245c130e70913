// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mock

import (
	"context"
	"log/slog"
	"sync"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
)

// PublishedMessage is a message captured by MockMessagePublisher
type PublishedMessage struct {
	Subject string
	Message any
}

// MockMessagePublisher records published events instead of sending them
type MockMessagePublisher struct {
	mu       sync.Mutex
	messages []PublishedMessage
	err      error
}

// Ensure MockMessagePublisher implements the MessagePublisher interface
var _ port.MessagePublisher = (*MockMessagePublisher)(nil)

// NewMockMessagePublisher creates a new mock publisher for testing
func NewMockMessagePublisher() *MockMessagePublisher {
	return &MockMessagePublisher{}
}

// Event records the message, or returns the configured error
func (m *MockMessagePublisher) Event(ctx context.Context, subject string, message any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.messages = append(m.messages, PublishedMessage{Subject: subject, Message: message})
	slog.InfoContext(ctx, "mock event message published", "subject", subject)
	return nil
}

// SetError makes every following Event call fail with err
func (m *MockMessagePublisher) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Messages returns a copy of the recorded messages
func (m *MockMessagePublisher) Messages() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedMessage(nil), m.messages...)
}

// Subjects returns the subjects of the recorded messages in order
func (m *MockMessagePublisher) Subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	subjects := make([]string, len(m.messages))
	for i, msg := range m.messages {
		subjects[i] = msg.Subject
	}
	return subjects
}
