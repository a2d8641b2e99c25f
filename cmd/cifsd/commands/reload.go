package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sergey-senozhatsky/cifsd-tools2/internal/config"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Signal a running manager to reload smb.conf and the password database",
	Long: `reload reads the PID the running manager wrote to its lock file and
sends it SIGHUP, the same signal original_source's cifsd reload path
uses. The manager forwards SIGHUP to its worker, which schedules a
registry reload on its IPC loop.`,
	RunE: runReload,
}

func runReload(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	data, err := os.ReadFile(cfg.LockFilePath)
	if err != nil {
		return fmt.Errorf("reload: read lock file %s: %w", cfg.LockFilePath, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("reload: lock file %s does not contain a PID: %w", cfg.LockFilePath, err)
	}

	if err := syscall.Kill(pid, syscall.SIGHUP); err != nil {
		return fmt.Errorf("reload: signal PID %d: %w", pid, err)
	}

	fmt.Printf("Sent SIGHUP to cifsd manager (PID %d)\n", pid)
	return nil
}
