// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

// NATS subject constants for message publishing
const (
	// SubscriberEventSubjectPrefix is followed by the lifecycle action,
	// e.g. lfx.subscriber-api.subscriber.unsubscribed
	SubscriberEventSubjectPrefix = "lfx.subscriber-api.subscriber."

	// ConfirmationNoticeSubject is the request subject answered by the mailer
	// service for confirmation notices
	ConfirmationNoticeSubject = "lfx.subscriber-api.confirmation.notify"
)
