// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/service"

	goahttp "goa.design/goa/v3/http"
)

// successEnvelope is the body of every 200 response
type successEnvelope struct {
	Code int `json:"code"`
	Data any `json:"data"`
}

// errorEnvelope is the body of every error response; data is always {}
type errorEnvelope struct {
	Code  int            `json:"code"`
	Error string         `json:"error"`
	Data  map[string]any `json:"data"`
}

// SubscribeData is returned by /subscribe. ID is a subscriber cid or a
// confirmation token.
type SubscribeData struct {
	ID string `json:"id"`
}

// UnsubscribeData is returned by /unsubscribe.
type UnsubscribeData struct {
	ID           int64 `json:"id"`
	Unsubscribed bool  `json:"unsubscribed"`
}

// DeleteData is returned by /delete.
type DeleteData struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

// ChangeEmailData is returned by /changeemail. ID is the subscriber id, or
// the confirmation token when Confirmation is set.
type ChangeEmailData struct {
	ID           any  `json:"id"`
	ChangedEmail bool `json:"changedemail"`
	Confirmation bool `json:"confirmation,omitempty"`
}

func convertSubscribeResult(result *service.SubscribeResult) SubscribeData {
	return SubscribeData{ID: result.ID}
}

func convertUnsubscribeResult(sub *model.Subscriber) UnsubscribeData {
	return UnsubscribeData{ID: sub.ID, Unsubscribed: true}
}

func convertDeleteResult(sub *model.Subscriber) DeleteData {
	return DeleteData{ID: sub.ID, Deleted: true}
}

func convertChangeAddressResult(result *service.ChangeAddressResult) ChangeEmailData {
	if result.Pending {
		return ChangeEmailData{ID: result.ID, ChangedEmail: false, Confirmation: true}
	}
	return ChangeEmailData{ID: result.Subscriber.ID, ChangedEmail: true}
}

func writeSuccess(ctx context.Context, w http.ResponseWriter, data any) {
	enc := goahttp.ResponseEncoder(ctx, w)
	w.WriteHeader(http.StatusOK)
	_ = enc.Encode(successEnvelope{Code: http.StatusOK, Data: data})
}

func writeFailure(ctx context.Context, w http.ResponseWriter, status int, message string) {
	enc := goahttp.ResponseEncoder(ctx, w)
	w.WriteHeader(status)
	_ = enc.Encode(errorEnvelope{Code: status, Error: message, Data: map[string]any{}})
}

// writeError maps err and writes the error envelope
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	writeFailure(ctx, w, wrapError(ctx, err), err.Error())
}
