// Package config loads the daemon's process-level settings (worker
// pool width, kernel channel socket, lock file, logging) the way the
// teacher's pkg/config does — layered viper config over CLI flags and
// CIFSD_* environment variables — plus the two domain-specific file
// formats original_source reads directly: smb.conf (internal/config's
// smbconf.go) and the NT-hash password database (pwddb.go).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sergey-senozhatsky/cifsd-tools2/internal/logger"
)

// Path defaults mirror original_source/include/cifsdtools.h's
// CIFSD_LOCK_FILE/PATH_PWDDB/PATH_SMBCONF/CIFSD_CONF_DEFAULT_* macros.
const (
	DefaultLockFile   = "/tmp/cifsd.lock"
	DefaultPwddbPath  = "/etc/cifs/cifsdpwd.db"
	DefaultSmbConf    = "/etc/cifs/smb.conf"
	DefaultTCPPort    = 445
	DefaultNetBIOS    = "CIFSD SERVER"
	DefaultWorkGroup  = "WORKGROUP"
	DefaultGuest      = "nobody"
	DefaultSessionCap = 1024
)

// Config is the daemon's process-level configuration (spec.md §1's
// manager/worker supervision parameters), loaded from the --config file
// or the default config path (see Load for how CIFSD_* environment
// variables apply). Dynamic share and user configuration lives in
// smb.conf/pwddb, parsed separately by ParseSmbConf/ParsePwddb once this
// struct names their paths.
type Config struct {
	// Logging controls the process-wide logger (internal/logger.Config).
	Logging logger.Config `mapstructure:"logging" yaml:"logging"`

	// LockFilePath is the exclusive lock file the supervisor holds for
	// the lifetime of the manager process.
	LockFilePath string `mapstructure:"lock_file" yaml:"lock_file"`

	// SmbConfPath and PwddbPath name the domain config files reloaded on
	// SIGHUP.
	SmbConfPath string `mapstructure:"smb_conf" yaml:"smb_conf"`
	PwddbPath   string `mapstructure:"pwddb" yaml:"pwddb"`

	// KernelSocketPath is the Unix-domain socket the worker process
	// connects to for its ipc.Channel. Empty uses an in-memory
	// ChannelPipe instead (see cmd/cifsd), useful for local testing
	// without a kernel module.
	KernelSocketPath string `mapstructure:"kernel_socket" yaml:"kernel_socket"`

	// WorkerPoolWidth bounds IPC request concurrency
	// (internal/workerpool.Pool). 0 uses workerpool.DefaultWidth.
	WorkerPoolWidth int `mapstructure:"worker_pool_width" yaml:"worker_pool_width"`

	// RestartBackoff is the pause between worker process restarts
	// (original_source's sleep(1) in the supervisor's respawn loop).
	RestartBackoff time.Duration `mapstructure:"restart_backoff" yaml:"restart_backoff"`

	// MetricsAddr is the Prometheus HTTP listen address ("" disables it).
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

// Default returns the configuration original_source ships with no
// smb.conf present at all: an empty share/user set, the standard paths,
// and INFO/text logging.
func Default() *Config {
	return &Config{
		Logging:         logger.Config{Level: "INFO", Format: "text", Output: "stdout"},
		LockFilePath:    DefaultLockFile,
		SmbConfPath:     DefaultSmbConf,
		PwddbPath:       DefaultPwddbPath,
		WorkerPoolWidth: 0,
		RestartBackoff:  time.Second,
		MetricsAddr:     "",
	}
}

// Load reads configuration from configPath (or the default search path
// if empty) over Default(). A CIFSD_* environment variable overrides a
// key only when the config file sets that key; when no config file is
// found, Default() is returned and the environment is not consulted.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if !found {
		return cfg, nil
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configPath, or the default location when configPath is
// empty (teacher's pkg/config.MustLoad). A configPath that does not
// exist is an error; an empty configPath with no default file yields
// Default().
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return Default(), nil
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: file not found: %s", configPath)
	}
	return Load(configPath)
}

// SaveConfig writes cfg as YAML to path, creating parent directories as
// needed (teacher's pkg/config.SaveConfig).
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("CIFSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read: %w", err)
	}
	return true, nil
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cifsd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "cifsd")
}

// GetDefaultConfigPath returns the default daemon config file location.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the
// default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
