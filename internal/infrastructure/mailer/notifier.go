// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package mailer sends confirmation notices to the mailer HTTP API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/httpclient"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/redaction"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const confirmationsPath = "/confirmations"

// Config holds the mailer API endpoint and its OAuth2 client credentials.
// TokenURL may be empty for mailers that accept unauthenticated calls.
type Config struct {
	URL          string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	HTTP         httpclient.Config
}

type notifier struct {
	endpoint string
	client   *httpclient.Client
}

var _ port.ConfirmationNotifier = (*notifier)(nil)

// NewNotifier builds the notifier. The transport chain is
// oauth2 (when configured) over otelhttp over the configured base transport.
func NewNotifier(cfg Config) (port.ConfirmationNotifier, error) {
	if cfg.URL == "" {
		return nil, errors.NewValidation("mailer URL is required")
	}

	base := cfg.HTTP.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	var transport http.RoundTripper = otelhttp.NewTransport(base)

	if cfg.TokenURL != "" {
		credentials := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: transport})
		transport = &oauth2.Transport{
			Source: credentials.TokenSource(tokenCtx),
			Base:   transport,
		}
	}

	httpCfg := cfg.HTTP
	httpCfg.Transport = transport

	client := httpclient.NewClient(httpCfg)
	client.AddRoundTripper(requestIDRoundTripper{})

	return &notifier{
		endpoint: strings.TrimRight(cfg.URL, "/") + confirmationsPath,
		client:   client,
	}, nil
}

// SendConfirmation posts the notice once. Any failure is ServiceUnavailable so
// the workflow compensates; a repeated POST could mail the recipient twice.
func (n *notifier) SendConfirmation(ctx context.Context, notice *model.ConfirmationNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return errors.NewUnexpected("failed to marshal confirmation notice", err)
	}

	resp, err := n.client.Request(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		var statusErr *httpclient.StatusError
		if stderrors.As(err, &statusErr) {
			slog.ErrorContext(ctx, "mailer rejected confirmation notice",
				"status", statusErr.StatusCode,
				"action", notice.Action,
				"recipient", redaction.RedactEmail(notice.Recipient))
		}
		return errors.NewServiceUnavailable("failed to send confirmation notice", err)
	}

	slog.DebugContext(ctx, "confirmation notice accepted by mailer",
		"status", resp.StatusCode,
		"action", notice.Action)
	return nil
}

// requestIDRoundTripper forwards the inbound request id to the mailer
type requestIDRoundTripper struct{}

func (requestIDRoundTripper) RoundTrip(req *http.Request, next func(*http.Request) (*http.Response, error)) (*http.Response, error) {
	if id, ok := req.Context().Value(constants.RequestIDContextKey).(string); ok && id != "" {
		req.Header.Set(constants.RequestIDHeader, id)
	}
	return next(req)
}
