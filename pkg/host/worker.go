/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package host

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/zkvm"
)

// ErrProofAbandoned is returned for proving jobs whose requester went away before the result was ready.
var ErrProofAbandoned = errors.New("proof abandoned")

// ProveFunc produces a receipt.
type ProveFunc func() (string, error)

type proofTask struct {
	ctx  context.Context //nolint:containedctx
	id   string
	fn   ProveFunc
	done chan proofResult
}

type proofResult struct {
	receipt string
	err     error
}

// WorkerPool runs proving jobs on a fixed number of goroutines so that the frame loops never block
// on proving.
type WorkerPool struct {
	workers int
	tasks   chan *proofTask

	processed atomic.Int64
	failed    atomic.Int64
	discarded atomic.Int64
}

// NewWorkerPool creates a pool of n workers. n below one means one.
func NewWorkerPool(n int) *WorkerPool {
	if n < 1 {
		n = 1
	}

	return &WorkerPool{workers: n, tasks: make(chan *proofTask)}
}

// Run serves jobs until ctx is done.
func (p *WorkerPool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < p.workers; i++ {
		worker := i

		g.Go(func() error {
			p.run(ctx, worker)

			return nil
		})
	}

	return g.Wait()
}

func (p *WorkerPool) run(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.tasks:
			p.process(worker, task)
		}
	}
}

func (p *WorkerPool) process(worker int, task *proofTask) {
	if err := task.ctx.Err(); err != nil {
		p.discarded.Add(1)
		task.done <- proofResult{err: fmt.Errorf("%w: %w", ErrProofAbandoned, err)}

		return
	}

	logger.Debugf("worker %d proving request %s", worker, task.id)

	receipt, err := zkvm.Isolate[string](task.fn)

	p.processed.Add(1)

	if err != nil {
		p.failed.Add(1)
	}

	task.done <- proofResult{receipt: receipt, err: err}
}

// Submit queues fn and waits for its receipt. A job is not started once ctx is done, and the result
// of a job that finishes after ctx is done is dropped.
func (p *WorkerPool) Submit(ctx context.Context, id string, fn ProveFunc) (string, error) {
	task := &proofTask{ctx: ctx, id: id, fn: fn, done: make(chan proofResult, 1)}

	select {
	case p.tasks <- task:
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrProofAbandoned, ctx.Err())
	}

	select {
	case res := <-task.done:
		if ctx.Err() != nil {
			p.discarded.Add(1)

			return "", fmt.Errorf("%w: %w", ErrProofAbandoned, ctx.Err())
		}

		return res.receipt, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrProofAbandoned, ctx.Err())
	}
}

// Stats returns the number of processed, failed and discarded jobs.
func (p *WorkerPool) Stats() (processed, failed, discarded int64) {
	return p.processed.Load(), p.failed.Load(), p.discarded.Load()
}
