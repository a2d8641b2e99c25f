package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sergey-senozhatsky/cifsd-tools2/internal/ipc"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/ipcloop"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/logger"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/session"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/share"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/user"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/workerpool"
)

// Worker owns one worker process's subsystems and runs its IPC loop
// until a terminating signal or channel error ends it.
type Worker struct {
	Channel  ipc.Channel
	Loop     *ipcloop.Loop
	Pool     *workerpool.Pool
	Sessions *session.Registry
	Shares   *share.Registry
	Users    *user.Registry
}

// RunWorker installs the worker's signal handlers and runs Loop until
// ctx is cancelled or a terminating signal arrives, then tears down
// every subsystem in original_source's worker_process_free order:
// ipc_destroy, rpc_destroy, wp_destroy, sm_destroy, shm_destroy,
// usm_destroy. rpc_destroy and the last three have no explicit Go
// analogue (their state
// is garbage collected once the registries go out of scope); only the
// channel and the pool own resources (a socket, in-flight goroutines)
// that need an ordered, blocking close.
func (w *Worker) RunWorker(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGABRT, syscall.SIGHUP, syscall.SIGSEGV)
	defer signal.Stop(sigCh)

	go func() {
		for {
			select {
			case sig, ok := <-sigCh:
				if !ok {
					return
				}
				if sig == syscall.SIGHUP {
					logger.Debug("scheduled a config reload action")
					w.Loop.RequestReload()
					continue
				}
				// SIGSEGV reaching this handler was sent externally
				// (e.g. forwarded by the manager); the Go runtime
				// intercepts in-process faults for its own nil-pointer
				// panic conversion before a signal.Notify channel ever
				// sees them.
				logger.Error("worker received signal, tearing down", "signal", sig)
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	runErr := w.Loop.Run(ctx)

	w.teardown()
	return runErr
}

func (w *Worker) teardown() {
	if w.Channel != nil {
		_ = w.Channel.Close() // ipc_destroy
	}
	// rpc_destroy: internal/srvsvc's Manager holds no external resources
	// beyond share references its pipes already Release() on Close.
	if w.Pool != nil {
		w.Pool.Close() // wp_destroy
	}
	// sm_destroy, shm_destroy, usm_destroy: Sessions/Shares/Users are
	// plain in-memory maps with no OS resources to release; dropping the
	// last reference and letting the garbage collector reclaim them is
	// the Go equivalent of original_source's explicit free() calls.
}
