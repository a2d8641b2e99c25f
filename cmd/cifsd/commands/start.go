package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sergey-senozhatsky/cifsd-tools2/internal/config"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/handlers"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/ipc"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/ipcloop"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/logger"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/metrics"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/session"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/share"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/srvsvc"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/supervisor"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/user"
	"github.com/sergey-senozhatsky/cifsd-tools2/internal/workerpool"
)

var (
	smbConfFlag  string
	pwddbFlag    string
	kernelSocket string
	foreground   bool
	logFile      string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the cifsd control-plane daemon",
	Long: `start runs the manager process, which holds the supervisor lock
file and spawns, supervises and restarts a single worker subprocess
(original_source's cifsd.c manager/worker split). By default the
manager detaches into the background; use --foreground to run under a
process supervisor such as systemd (folding original_source's -n and
-s flags into one).`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVarP(&smbConfFlag, "smb-conf", "c", "", "Path to smb.conf (default: config file's smb_conf, or "+config.DefaultSmbConf+")")
	startCmd.Flags().StringVarP(&pwddbFlag, "pwddb", "i", "", "Path to the NT-hash password database (default: config file's pwddb, or "+config.DefaultPwddbPath+")")
	startCmd.Flags().StringVar(&kernelSocket, "kernel-socket", "", "Unix-domain socket the worker dials for its IPC channel (default: an in-memory channel, for local testing without a kernel module)")
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in the foreground (default: detach into the background)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for background mode (default: $XDG_STATE_HOME/cifsd/cifsd.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := loadStartConfig()
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}
	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))

	if os.Getenv(supervisor.WorkerEnvVar) == "1" {
		return runWorkerProcess(cfg)
	}
	return runManagerProcess(cfg)
}

// loadStartConfig loads the daemon config and overlays any path flags
// the user passed explicitly.
func loadStartConfig() (*config.Config, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if smbConfFlag != "" {
		cfg.SmbConfPath = smbConfFlag
	}
	if pwddbFlag != "" {
		cfg.PwddbPath = pwddbFlag
	}
	if kernelSocket != "" {
		cfg.KernelSocketPath = kernelSocket
	}
	return cfg, nil
}

// startDaemon re-execs the current binary with --foreground set and
// detaches it from the controlling terminal (teacher's
// cmd/dittofs/commands/start.go startDaemon, standing in for
// original_source's daemon(0, 0) call).
func startDaemon() error {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	cifsdStateDir := filepath.Join(stateDir, "cifsd")
	if err := os.MkdirAll(cifsdStateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	logPath := logFile
	if logPath == "" {
		logPath = filepath.Join(cifsdStateDir, "cifsd.log")
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground"}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}
	if smbConfFlag != "" {
		daemonArgs = append(daemonArgs, "--smb-conf", smbConfFlag)
	}
	if pwddbFlag != "" {
		daemonArgs = append(daemonArgs, "--pwddb", pwddbFlag)
	}
	if kernelSocket != "" {
		daemonArgs = append(daemonArgs, "--kernel-socket", kernelSocket)
	}

	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFileHandle.Close()

	daemonCmd := exec.Command(executable, daemonArgs...)
	daemonCmd.Stdout = logFileHandle
	daemonCmd.Stderr = logFileHandle
	daemonCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := daemonCmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Printf("cifsd started in background (PID %d)\n", daemonCmd.Process.Pid)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("Use 'cifsd reload' to reload smb.conf/pwddb, send SIGTERM to stop it")
	return nil
}

// runManagerProcess holds the supervisor lock and supervises the
// worker subprocess; it builds none of the worker's own subsystems.
func runManagerProcess(cfg *config.Config) error {
	m := metrics.Null()
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		srv := metrics.NewServer(cfg.MetricsAddr, reg)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	workerArgs := []string{"start", "--foreground"}
	if GetConfigFile() != "" {
		workerArgs = append(workerArgs, "--config", GetConfigFile())
	}
	workerArgs = append(workerArgs, "--smb-conf", cfg.SmbConfPath, "--pwddb", cfg.PwddbPath)
	if cfg.KernelSocketPath != "" {
		workerArgs = append(workerArgs, "--kernel-socket", cfg.KernelSocketPath)
	}

	manager := supervisor.NewManager(cfg.LockFilePath, workerArgs, cfg.RestartBackoff, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("manager starting", "lock_file", cfg.LockFilePath)
	return manager.Run(ctx)
}

// runWorkerProcess builds every IPC subsystem and runs the worker's
// dispatch loop until a terminating signal or context cancellation.
func runWorkerProcess(cfg *config.Config) error {
	shares := share.NewRegistry()
	if err := reloadShares(shares, cfg.SmbConfPath); err != nil {
		logger.Warn("initial smb.conf load failed, starting with no shares", "error", err)
	}

	users := user.NewRegistry()
	if err := reloadUsers(users, cfg.PwddbPath); err != nil {
		logger.Warn("initial pwddb load failed, starting with no accounts", "error", err)
	}

	sessions := session.NewRegistry()

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New(prometheus.NewRegistry())
	} else {
		m = metrics.Null()
	}

	pipes := srvsvc.NewManager(shares)
	pipes.Metrics = m
	h := handlers.New(shares, users, sessions, pipes)
	h.Metrics = m

	pool := workerpool.New(cfg.WorkerPoolWidth)
	poolWidth := cfg.WorkerPoolWidth
	if poolWidth <= 0 {
		poolWidth = workerpool.DefaultWidth
	}
	m.SetPoolWidth(poolWidth)

	channel, err := dialChannel(cfg.KernelSocketPath)
	if err != nil {
		return fmt.Errorf("failed to establish kernel channel: %w", err)
	}

	onReload := func() error {
		if err := reloadShares(shares, cfg.SmbConfPath); err != nil {
			return err
		}
		return reloadUsers(users, cfg.PwddbPath)
	}
	loop := ipcloop.New(channel, h, pool, onReload)

	worker := &supervisor.Worker{
		Channel:  channel,
		Loop:     loop,
		Pool:     pool,
		Sessions: sessions,
		Shares:   shares,
		Users:    users,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("worker starting", "pid", os.Getpid(), "shares", shares.Len(), "users", users.Len())
	return worker.RunWorker(ctx)
}

// dialChannel connects to socketPath if set, or returns an in-memory
// channel pair (discarding the simulated kernel side) for local runs
// without a kernel module.
func dialChannel(socketPath string) (ipc.Channel, error) {
	if socketPath == "" {
		daemonSide, _ := ipc.NewChannelPipe()
		return daemonSide, nil
	}
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial kernel socket %s: %w", socketPath, err)
	}
	return ipc.NewUnixChannel(conn), nil
}

func reloadShares(reg *share.Registry, path string) error {
	shares, err := config.ParseSmbConf(path)
	if err != nil {
		return err
	}
	reg.Replace(shares)
	return nil
}

func reloadUsers(reg *user.Registry, path string) error {
	users, err := config.ParsePwddb(path)
	if err != nil {
		return err
	}
	reg.Replace(users)
	return nil
}

