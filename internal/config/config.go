// Package config loads kvfs settings from defaults, an optional YAML file,
// KVFS_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. KVFS_LOGGING_LEVEL.
const EnvPrefix = "KVFS"

// Config is the complete kvfs configuration.
//
// Sources, highest precedence first:
//  1. command-line flags that were set explicitly
//  2. KVFS_* environment variables
//  3. the configuration file
//  4. defaults
type Config struct {
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Mount   MountConfig   `mapstructure:"mount" yaml:"mount"`
}

// StoreConfig configures the embedded key-value store.
type StoreConfig struct {
	// Path is the store directory. Commands taking a STORE_PATH argument
	// override it.
	Path string `mapstructure:"path" yaml:"path"`

	// SyncWrites fsyncs every commit before it returns
	SyncWrites bool `mapstructure:"sync_writes" yaml:"sync_writes"`

	// InMemory keeps everything in memory; Path is ignored
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// MountConfig configures the FUSE mount.
type MountConfig struct {
	FSName   string `mapstructure:"fsname" yaml:"fsname"`
	ReadOnly bool   `mapstructure:"read_only" yaml:"read_only"`
}

// flagKeys maps configuration keys to the flags that override them.
var flagKeys = map[string]string{
	"store.sync_writes": "sync-writes",
	"logging.level":     "log-level",
	"logging.format":    "log-format",
	"metrics.addr":      "metrics-addr",
	"mount.fsname":      "fsname",
	"mount.read_only":   "read-only",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.path", "")
	v.SetDefault("store.sync_writes", true)
	v.SetDefault("store.in_memory", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("mount.fsname", "kvfs")
	v.SetDefault("mount.read_only", false)
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load resolves the configuration. configPath may be empty, in which case
// the default location is tried and silently skipped when absent. flags
// may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(ConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that do not depend on the command being run.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("logging.format must be text, json or logfmt, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Mount.FSName == "" {
		return errors.New("mount.fsname must not be empty")
	}
	return nil
}

// YAML renders the configuration as a config file.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ConfigDir returns $XDG_CONFIG_HOME/kvfs, falling back to ~/.config/kvfs.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "kvfs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "kvfs")
}
