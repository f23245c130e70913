// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the subscriber API entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/cmd/subscriber-api/service"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/metrics"
	logging "github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/log"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/utils"
)

const (
	defaultPort = "8080"
	// gracefulShutdownSeconds should be higher than NATS client
	// request timeout, and lower than the pod or liveness check's
	// terminationGracePeriodSeconds.
	gracefulShutdownSeconds = 25
)

func init() {
	logging.InitStructureLogConfig()
}

func main() {
	var (
		dbgF = flag.Bool("d", false, "enable debug logging")
		port = flag.String("p", defaultPort, "listen port")
		bind = flag.String("bind", "*", "interface to bind on")
	)
	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	ctx := context.Background()

	otelShutdown, err := utils.SetupOTelSDK(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "error setting up OpenTelemetry SDK", "error", err)
		os.Exit(1)
	}
	defer func() {
		if shutdownErr := otelShutdown(context.Background()); shutdownErr != nil {
			slog.ErrorContext(ctx, "error shutting down OpenTelemetry SDK", "error", shutdownErr)
		}
	}()

	metrics.Init()

	slog.InfoContext(ctx, "initializing subscriber service")

	blacklist := service.LifecycleBlacklistGuard(ctx)
	lifecycle := service.SubscriptionStateMachine(ctx, blacklist)
	api := service.NewSubscriberAPI(lifecycle, blacklist, service.ReadinessCheckers(ctx)...)
	authenticator := service.AuthService(ctx)

	// Create channel used by both the signal handler and server goroutines
	// to notify the main goroutine when to stop the server.
	errc := make(chan error)

	// Setup interrupt handler. This optional step configures the process so
	// that SIGINT and SIGTERM signals cause the services to stop gracefully.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)

	addr := ":" + *port
	if *bind != "*" {
		addr = net.JoinHostPort(*bind, *port)
	}

	handler := newHandler(api, authenticator, service.TrustedProxies(ctx), *dbgF)
	handleHTTPServer(ctx, addr, handler, &wg, errc)

	// Wait for signal.
	slog.InfoContext(ctx, "received shutdown signal, stopping servers",
		"signal", <-errc,
	)

	// Send cancellation signal to the goroutines.
	cancel()

	gracefulCloseWG := sync.WaitGroup{}
	gracefulCloseWG.Add(1)
	go func() {
		defer gracefulCloseWG.Done()
		service.CloseClients(ctx)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
	defer waitCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		gracefulCloseWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.InfoContext(ctx, "graceful shutdown completed")
	case <-waitCtx.Done():
		slog.WarnContext(ctx, "graceful shutdown timed out")
	}
}
