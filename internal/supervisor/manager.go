// Package supervisor implements the manager/worker process split
// (spec.md §1, original_source's cifsd.c): a lock-file-guarded manager
// process that spawns, supervises, restarts-with-backoff and signals a
// single worker subprocess. Go cannot safely fork() once goroutines and
// the runtime scheduler are running, so where original_source forks
// worker_process_init in-process, the manager here re-execs the current
// binary with WorkerEnvVar set, and cmd/cifsd's start command runs
// Worker.RunWorker in that fresh process instead.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/sergey-senozhatsky/cifsd-tools2/internal/logger"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/metrics"
)

// WorkerEnvVar is set in the worker subprocess's environment so
// cmd/cifsd's start command knows to run Worker.RunWorker instead of
// Manager.Run.
const WorkerEnvVar = "CIFSD_WORKER_MODE"

// Manager supervises the worker subprocess: spawn, forward signals,
// restart with a ratelimit on abnormal exit (original_source's
// manager_process_init waitpid loop).
type Manager struct {
	LockFilePath   string
	WorkerArgs     []string // extra argv appended when re-execing
	RestartBackoff time.Duration
	Metrics        *metrics.Metrics
}

// NewManager constructs a Manager with sane defaults for any zero field.
func NewManager(lockFilePath string, workerArgs []string, restartBackoff time.Duration, m *metrics.Metrics) *Manager {
	if restartBackoff <= 0 {
		restartBackoff = time.Second
	}
	return &Manager{LockFilePath: lockFilePath, WorkerArgs: workerArgs, RestartBackoff: restartBackoff, Metrics: m}
}

// Run acquires the manager lock and supervises the worker subprocess
// until ctx is cancelled or a terminating signal arrives, then releases
// the lock (original_source's manager_process_init minus daemon(); Go's
// cmd layer owns any detach-to-background decision).
func (m *Manager) Run(ctx context.Context) error {
	lock, err := AcquireLock(m.LockFilePath)
	if err != nil {
		return err
	}
	defer lock.Release()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGABRT, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		cmd, exitCh, err := m.spawnWorker()
		if err != nil {
			return fmt.Errorf("supervisor: spawn worker: %w", err)
		}
		logger.Info("worker process started", "pid", cmd.Process.Pid)

		restart, err := m.superviseOne(ctx, cmd, exitCh, sigCh)
		if err != nil {
			return err
		}
		if !restart {
			return nil
		}

		m.Metrics.RecordWorkerRestart()
		logger.Warn("worker exited, restarting", "backoff", m.RestartBackoff)
		time.Sleep(m.RestartBackoff)
	}
}

// superviseOne waits on a single worker instance, handling signals
// (forwarding SIGHUP for reload, forwarding and waiting out a
// terminating signal) and reports whether the manager should spawn a
// replacement worker.
func (m *Manager) superviseOne(ctx context.Context, cmd *exec.Cmd, exitCh <-chan error, sigCh <-chan os.Signal) (restart bool, err error) {
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				if perr := cmd.Process.Signal(syscall.SIGHUP); perr != nil {
					logger.Error("forward SIGHUP to worker failed", "error", perr)
				}
				continue
			}
			_ = cmd.Process.Signal(sig)
			<-exitCh
			return false, nil

		case werr := <-exitCh:
			if werr != nil {
				logger.Warn("worker process exited abnormally", "error", werr)
			}
			return true, nil

		case <-ctx.Done():
			_ = cmd.Process.Signal(syscall.SIGTERM)
			<-exitCh
			return false, nil
		}
	}
}

// spawnWorker re-execs the current binary with WorkerEnvVar set,
// standing in for original_source's fork()+worker_process_init.
func (m *Manager) spawnWorker() (*exec.Cmd, <-chan error, error) {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}

	cmd := exec.Command(exe, m.WorkerArgs...)
	cmd.Env = append(os.Environ(), WorkerEnvVar+"=1")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	exitCh := make(chan error, 1)
	go func() { exitCh <- cmd.Wait() }()

	return cmd, exitCh, nil
}
