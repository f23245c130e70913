// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/redaction"
)

// confirmationNotifier asks the mailer service over request/reply to send the
// confirmation message. An empty reply or one without an error is an ack.
type confirmationNotifier struct {
	client *NATSClient
}

// SendConfirmation dispatches the notice and waits for the mailer's ack
func (n *confirmationNotifier) SendConfirmation(ctx context.Context, notice *model.ConfirmationNotice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return errors.NewUnexpected("failed to marshal confirmation notice", err)
	}

	ctx, cancel := n.client.requestTimeout(ctx)
	defer cancel()

	slog.DebugContext(ctx, "requesting confirmation notice via NATS",
		"subject", constants.ConfirmationNoticeSubject,
		"action", notice.Action,
		"recipient", redaction.RedactEmail(notice.Recipient))

	msg, err := n.client.conn.RequestWithContext(ctx, constants.ConfirmationNoticeSubject, data)
	if err != nil {
		slog.ErrorContext(ctx, "failed to request confirmation notice",
			"error", err,
			"action", notice.Action)
		return errors.NewServiceUnavailable(fmt.Sprintf("mailer unavailable: %v", err))
	}

	var errorResponse struct {
		Error string `json:"error"`
	}
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &errorResponse); err == nil && errorResponse.Error != "" {
			slog.WarnContext(ctx, "mailer responded with an error",
				"subject", constants.ConfirmationNoticeSubject,
				"error", errorResponse.Error)
			return errors.NewServiceUnavailable(errorResponse.Error)
		}
	}

	return nil
}

// NewConfirmationNotifier creates a notifier backed by NATS request/reply
func NewConfirmationNotifier(client *NATSClient) port.ConfirmationNotifier {
	return &confirmationNotifier{
		client: client,
	}
}
