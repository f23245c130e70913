// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/cmd/subscriber-api/service"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"goa.design/clue/debug"
	goahttp "goa.design/goa/v3/http"
)

// newHandler builds the muxer and the middleware chain. The outermost
// middleware runs first.
func newHandler(api *service.SubscriberAPI, authenticator port.Authenticator, trustedProxies []netip.Prefix, dbg bool) http.Handler {
	mux := goahttp.NewMuxer()

	if dbg {
		debug.MountPprofHandlers(debug.Adapt(mux))
	}

	api.Mount(mux)
	mux.Handle(http.MethodGet, service.PathMetrics, promhttp.Handler().ServeHTTP)

	var handler http.Handler = mux
	handler = middleware.RequestBodyMiddleware(middleware.DefaultMaxBodyBytes)(handler)
	handler = middleware.AccessGateMiddleware(authenticator, openPaths(dbg)...)(handler)
	handler = middleware.MetricsMiddleware()(handler)
	handler = middleware.RequestIDMiddleware(trustedProxies...)(handler)

	return otelhttp.NewHandler(handler, constants.ServiceName)
}

// openPaths lists the paths served without an access_token.
func openPaths(dbg bool) []string {
	paths := []string{service.PathLivez, service.PathReadyz, service.PathMetrics}
	if dbg {
		for _, profile := range []string{"", "allocs", "block", "cmdline", "goroutine", "heap", "mutex", "profile", "symbol", "threadcreate", "trace"} {
			paths = append(paths, "/debug/pprof/"+profile)
		}
	}
	return paths
}

// handleHTTPServer starts the HTTP server and stops it when ctx is cancelled.
// Only a failure to serve is reported on errc; a graceful close is not.
func handleHTTPServer(ctx context.Context, addr string, handler http.Handler, wg *sync.WaitGroup, errc chan error) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 60 * time.Second,
	}

	(*wg).Add(2)
	go func() {
		defer (*wg).Done()

		slog.InfoContext(ctx, "HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	go func() {
		defer (*wg).Done()

		<-ctx.Done()
		slog.InfoContext(ctx, "shutting down HTTP server", "addr", addr)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "failed to shutdown HTTP server", "error", err)
		}
	}()
}
