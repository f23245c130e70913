// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package concurrent provides a bounded worker pool for fan-out work.
package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs functions with at most size of them in flight.
type WorkerPool struct {
	size int
}

// NewWorkerPool creates a pool; a non-positive size means one worker.
func NewWorkerPool(size int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{size: size}
}

// Run executes every function and waits for all of them. The first error is
// returned and the context handed to the remaining work is cancelled.
func (p *WorkerPool) Run(ctx context.Context, fns ...func() error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)

	for _, fn := range fns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn()
		})
	}

	return g.Wait()
}
