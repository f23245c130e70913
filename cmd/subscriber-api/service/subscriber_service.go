// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package service implements the subscriber API endpoints.
package service

import (
	"log/slog"
	"net/http"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/redaction"

	goahttp "goa.design/goa/v3/http"
)

// Unauthenticated paths.
const (
	PathLivez   = "/livez"
	PathReadyz  = "/readyz"
	PathMetrics = "/metrics"
)

// SubscriberAPI serves the lifecycle and blacklist endpoints.
type SubscriberAPI struct {
	lifecycle *service.SubscriptionStateMachine
	blacklist *service.BlacklistGuard
	readiness []port.ReadinessChecker
	vars      func(*http.Request) map[string]string
}

// NewSubscriberAPI returns the endpoint implementation.
func NewSubscriberAPI(lifecycle *service.SubscriptionStateMachine, blacklist *service.BlacklistGuard, readiness ...port.ReadinessChecker) *SubscriberAPI {
	return &SubscriberAPI{
		lifecycle: lifecycle,
		blacklist: blacklist,
		readiness: readiness,
	}
}

// Mount registers every endpoint on mux.
func (s *SubscriberAPI) Mount(mux goahttp.Muxer) {
	s.vars = mux.Vars

	mux.Handle(http.MethodPost, "/subscribe/{listId}", s.Subscribe)
	mux.Handle(http.MethodPost, "/unsubscribe/{listId}", s.Unsubscribe)
	mux.Handle(http.MethodPost, "/delete/{listId}", s.Delete)
	mux.Handle(http.MethodPost, "/changeemail/{listId}", s.ChangeEmail)
	mux.Handle(http.MethodPost, "/blacklist/add", s.BlacklistAdd)
	mux.Handle(http.MethodPost, "/blacklist/delete", s.BlacklistDelete)
	mux.Handle(http.MethodGet, PathLivez, s.Livez)
	mux.Handle(http.MethodGet, PathReadyz, s.Readyz)
}

func (s *SubscriberAPI) listID(r *http.Request) string {
	if s.vars == nil {
		return ""
	}
	return s.vars(r)["listId"]
}

// Subscribe handles POST /subscribe/{listId}
func (s *SubscriberAPI) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := decodePayload(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	in := service.NewSubscribeInput(s.listID(r), payload, requestOrigin(r))

	slog.DebugContext(ctx, "subscriberAPI.subscribe",
		"list_ref", in.ListID,
		"email", redaction.RedactEmail(in.Email),
		"require_confirmation", in.RequireConfirmation)

	result, err := s.lifecycle.Subscribe(ctx, in)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, convertSubscribeResult(result))
}

// Unsubscribe handles POST /unsubscribe/{listId}
func (s *SubscriberAPI) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := decodePayload(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	sub, err := s.lifecycle.Unsubscribe(ctx, service.NewAddressInput(s.listID(r), payload))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, convertUnsubscribeResult(sub))
}

// Delete handles POST /delete/{listId}
func (s *SubscriberAPI) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := decodePayload(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	sub, err := s.lifecycle.Delete(ctx, service.NewAddressInput(s.listID(r), payload))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, convertDeleteResult(sub))
}

// ChangeEmail handles POST /changeemail/{listId}
func (s *SubscriberAPI) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := decodePayload(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := s.lifecycle.ChangeAddress(ctx, service.NewChangeAddressInput(s.listID(r), payload, requestOrigin(r)))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, convertChangeAddressResult(result))
}

// BlacklistAdd handles POST /blacklist/add
func (s *SubscriberAPI) BlacklistAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := decodePayload(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if err := s.blacklist.Add(ctx, payload[service.KeyEmail]); err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, map[string]any{})
}

// BlacklistDelete handles POST /blacklist/delete
func (s *SubscriberAPI) BlacklistDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := decodePayload(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if err := s.blacklist.Remove(ctx, payload[service.KeyEmail]); err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, map[string]any{})
}

// Livez implements the liveness check.
func (s *SubscriberAPI) Livez(w http.ResponseWriter, r *http.Request) {
	slog.DebugContext(r.Context(), "liveness check completed successfully")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Readyz implements the readiness check over every backing store.
func (s *SubscriberAPI) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	for _, checker := range s.readiness {
		if err := checker.IsReady(ctx); err != nil {
			slog.ErrorContext(ctx, "service not ready", "error", err)
			writeFailure(ctx, w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}
