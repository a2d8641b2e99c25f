// Package ipcloop implements the worker process's single-threaded
// kernel-channel read loop: read one message, hand it to the worker
// pool, check the reload flag, repeat (original_source's
// worker_process_init while loop over ipc_process_event()).
package ipcloop

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sergey-senozhatsky/cifsd-tools2/internal/handlers"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/ipc"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/logger"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/workerpool"
)

// ReloadFunc re-parses the daemon's configuration files. It is called
// from the loop's own goroutine, between reads. Handlers submitted to the
// worker pool before the reload may still be running on pool goroutines
// while it executes.
type ReloadFunc func() error

// Loop owns the kernel channel and dispatches every message it reads to
// the worker pool, writing the handler's response back over the same
// channel.
type Loop struct {
	channel  ipc.Channel
	handlers *handlers.Handlers
	pool     *workerpool.Pool
	onReload ReloadFunc

	reloadPending atomic.Bool
}

// New constructs a Loop. onReload may be nil if config reload isn't
// wired (e.g. in tests).
func New(channel ipc.Channel, h *handlers.Handlers, pool *workerpool.Pool, onReload ReloadFunc) *Loop {
	return &Loop{channel: channel, handlers: h, pool: pool, onReload: onReload}
}

// RequestReload schedules a config reload before the loop's next read.
// Safe to call from a signal handler goroutine.
func (l *Loop) RequestReload() {
	l.reloadPending.Store(true)
}

// Run reads messages until ctx is cancelled or the channel errors out.
// A cancelled ctx is reported as nil, any other read failure is
// returned to the caller so the worker process can exit and let the
// supervisor restart it.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if l.reloadPending.CompareAndSwap(true, false) {
			l.reload(ctx)
		}

		msg, err := l.channel.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("ipcloop: recv: %w", err)
		}

		l.dispatch(ctx, msg)
	}
}

func (l *Loop) reload(ctx context.Context) {
	if l.onReload == nil {
		return
	}
	if err := l.onReload(); err != nil {
		logger.ErrorCtx(ctx, "config reload failed, continuing with the old configuration", "error", err)
		return
	}
	logger.InfoCtx(ctx, "config reload completed")
}

// dispatch submits one message's handling to the worker pool under a
// fresh trace id, so handler logs and its eventual response can be
// correlated without threading an id through every call explicitly.
func (l *Loop) dispatch(ctx context.Context, msg *ipc.Message) {
	rc := &logger.RequestContext{TraceID: uuid.New().String()}
	reqCtx := logger.WithRequest(ctx, rc)

	err := l.pool.Submit(ctx, func() {
		l.handlers.Metrics.IncInFlight()
		defer l.handlers.Metrics.DecInFlight()

		resp, err := l.handlers.Dispatch(reqCtx, msg)
		if err != nil {
			logger.ErrorCtx(reqCtx, "dispatch failed", "type", msg.Type, "error", err)
			return
		}
		if resp == nil {
			return
		}
		if err := l.channel.Send(reqCtx, resp); err != nil {
			logger.ErrorCtx(reqCtx, "send response failed", "type", resp.Type, "error", err)
		}
	})
	if err != nil {
		logger.WarnCtx(reqCtx, "dropping message: worker pool unavailable", "type", msg.Type, "error", err)
	}
}
