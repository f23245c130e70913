// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	errs "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/errors"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeClient  = "client_error"
	OutcomeFailure = "failure"
)

var (
	// HTTPRequests counts requests by route pattern, method and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriber_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPRequestDuration observes request latency by route pattern.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subscriber_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// LifecycleOperations counts subscribe, unsubscribe, delete and
	// change-address outcomes.
	LifecycleOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriber_lifecycle_operations_total",
			Help: "Number of lifecycle operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// ConfirmationDispatches counts confirmation notices by action and result.
	ConfirmationDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriber_confirmation_dispatches_total",
			Help: "Number of confirmation notices sent or failed",
		},
		[]string{"action", "outcome"},
	)

	registerOnce sync.Once
)

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(HTTPRequests, HTTPRequestDuration, LifecycleOperations, ConfirmationDispatches)
	})
}

// Outcome maps an operation error to an outcome label.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}

	var (
		validation errs.Validation
		notFound   errs.NotFound
		forbidden  errs.Forbidden
		conflict   errs.Conflict
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &notFound),
		errors.As(err, &forbidden), errors.As(err, &conflict):
		return OutcomeClient
	}
	return OutcomeFailure
}
