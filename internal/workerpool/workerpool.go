// Package workerpool implements the bounded-concurrency pool the IPC
// read loop hands decoded messages to, so a slow handler (a large
// NetShareEnumAll fragment chain, a blocked tree connect) never stalls
// the single-threaded reader behind it (spec.md §4.2, original_source's
// wp_init/wp_destroy worker-thread pool).
package workerpool

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultWidth is the pool width used when none is configured.
// original_source declares wp_init()/MAX_WORKER_THREADS but the
// constant itself isn't in the retrieved sources; 4 is a conservative
// default sized for a single-socket control plane, not a high-throughput
// data path (see DESIGN.md).
const DefaultWidth = 4

// Pool runs submitted functions with bounded concurrency, tracking
// in-flight work so Close can wait for a clean drain.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// New constructs a Pool that runs at most width functions concurrently.
// width <= 0 falls back to DefaultWidth.
func New(width int) *Pool {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Pool{sem: semaphore.NewWeighted(int64(width))}
}

// Submit acquires a pool slot and runs fn in its own goroutine once one
// is free, returning as soon as the slot is acquired (not when fn
// finishes). It blocks until a slot is available or ctx is done.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("workerpool: acquire: %w", err)
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		fn()
	}()
	return nil
}

// Close waits for every submitted function to finish (original_source's
// wp_destroy, which joins every worker thread before the process
// continues tearing down the rest of its subsystems).
func (p *Pool) Close() {
	p.wg.Wait()
}
