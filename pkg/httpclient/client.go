// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package httpclient is the outbound JSON client used by collaborators such
// as the mailer. Every call is a single attempt: callers that need a second
// try decide for themselves, since a repeated POST may repeat its effect.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// RoundTripper wraps each outbound request, e.g. to forward headers.
type RoundTripper interface {
	RoundTrip(req *http.Request, next func(*http.Request) (*http.Response, error)) (*http.Response, error)
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// StatusError is returned for responses with a 4xx or 5xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// Client sends requests through its RoundTripper chain.
type Client struct {
	httpClient    *http.Client
	roundTrippers []RoundTripper
}

// NewClient creates a client from config
func NewClient(config Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
	}
}

// AddRoundTripper appends rt to the chain. Call it before the first request.
func (c *Client) AddRoundTripper(rt RoundTripper) {
	c.roundTrippers = append(c.roundTrippers, rt)
}

// Request sends one request and reads the whole body. Statuses of 400 and
// above come back as *StatusError together with the response.
func (c *Client) Request(ctx context.Context, verb, url string, body io.Reader, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, verb, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.send(req, 0)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	response := &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}
	if resp.StatusCode >= http.StatusBadRequest {
		return response, &StatusError{StatusCode: resp.StatusCode, Message: string(data)}
	}
	return response, nil
}

func (c *Client) send(req *http.Request, index int) (*http.Response, error) {
	if index >= len(c.roundTrippers) {
		return c.httpClient.Do(req)
	}
	return c.roundTrippers[index].RoundTrip(req, func(next *http.Request) (*http.Response, error) {
		return c.send(next, index+1)
	})
}
