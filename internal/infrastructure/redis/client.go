// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package redis provides the Redis-backed pending confirmation store.
package redis

import (
	"context"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// Client wraps the go-redis client with readiness checking.
type Client struct {
	*redis.Client
}

// NewClient connects to the Redis server at url and verifies it with PING.
func NewClient(ctx context.Context, url string) (*Client, error) {
	if url == "" {
		return nil, errors.NewValidation("redis URL is required")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.NewValidation("invalid redis URL", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.NewServiceUnavailable("redis ping failed", err)
	}

	slog.InfoContext(ctx, "redis client created successfully", "addr", opts.Addr)

	return &Client{Client: client}, nil
}

// IsReady pings the server.
func (c *Client) IsReady(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return errors.NewServiceUnavailable("redis is not ready", err)
	}
	return nil
}
