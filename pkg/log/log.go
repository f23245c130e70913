// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package log configures the service's JSON slog output and carries
// request-scoped attributes (request id, list, subscriber) through contexts.
package log

import (
	"context"
	"log/slog"
	"os"
	"strings"

	slogotel "github.com/remychantenay/slog-otel"
)

type ctxKey string

const slogFields ctxKey = "slog_fields"

type contextHandler struct {
	slog.Handler
}

// Handle adds the attributes stored by AppendCtx to the record.
func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(slogFields).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

// AppendCtx returns a context whose log records will include attr.
func AppendCtx(parent context.Context, attr slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	existing, _ := parent.Value(slogFields).([]slog.Attr)
	attrs := make([]slog.Attr, 0, len(existing)+1)
	attrs = append(attrs, existing...)
	return context.WithValue(parent, slogFields, append(attrs, attr))
}

// levelFromEnv maps LOG_LEVEL to a slog level. Anything unrecognised logs
// at debug.
func levelFromEnv(value string) slog.Level {
	switch strings.ToLower(value) {
	case "error":
		return slog.LevelError
	case "warn":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// InitStructureLogConfig installs the default JSON logger. LOG_LEVEL selects
// the level and LOG_ADD_SOURCE=true adds caller locations. Records emitted
// within a span carry its trace_id and span_id.
func InitStructureLogConfig() {
	opts := &slog.HandlerOptions{
		Level:     levelFromEnv(os.Getenv("LOG_LEVEL")),
		AddSource: os.Getenv("LOG_ADD_SOURCE") == "true",
	}
	h := slogotel.OtelHandler{Next: slog.NewJSONHandler(os.Stdout, opts)}
	slog.SetDefault(slog.New(contextHandler{h}))
	slog.Debug("log config", "level", opts.Level, "add_source", opts.AddSource)
}

// PriorityCritical tags a record for escalation, such as a confirmation that
// was stored but never delivered.
func PriorityCritical() slog.Attr {
	return slog.String("priority", "critical")
}
