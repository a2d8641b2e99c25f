// Package commands implements cifsd's CLI, built on spf13/cobra the
// same way the teacher's cmd/dittofs/commands package is.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "cifsd",
	Short: "cifsd - userspace control plane for the split SMB/CIFS server",
	Long: `cifsd supervises the worker process that answers the kernel
engine's IPC requests (login, tree connect, share config, heartbeat) and
drives the srvsvc named-pipe RPC engine.

Use "cifsd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
// Called once by main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/cifsd/config.yaml)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(versionCmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
