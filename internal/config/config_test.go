package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// isolate points the default config location at an empty directory.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "kvfs", cfg.Mount.FSName)
	assert.True(t, cfg.Store.SyncWrites)
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	p := writeConfig(t, `
store:
  path: /var/lib/kvfs
  sync_writes: false
logging:
  level: debug
metrics:
  addr: ":9100"
`)

	cfg, err := Load(p, nil)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/kvfs", cfg.Store.Path)
	assert.False(t, cfg.Store.SyncWrites)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, "text", cfg.Logging.Format, "unset keys keep their defaults")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestPrecedence(t *testing.T) {
	isolate(t)
	p := writeConfig(t, "logging:\n  level: debug\n  format: json\n")
	t.Setenv("KVFS_LOGGING_LEVEL", "warn")
	t.Setenv("KVFS_MOUNT_READ_ONLY", "true")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.String("log-format", "text", "")
	require.NoError(t, flags.Parse([]string{"--log-level", "error"}))

	cfg, err := Load(p, flags)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level, "explicit flag wins")
	assert.Equal(t, "json", cfg.Logging.Format, "unset flag does not shadow the file")
	assert.True(t, cfg.Mount.ReadOnly, "environment applies")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"json", func(c *Config) { c.Logging.Format = "json" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, false},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, false},
		{"no fsname", func(c *Config) { c.Mount.FSName = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Store.Path = "/data"

	b, err := cfg.YAML()
	require.NoError(t, err)

	var back Config
	require.NoError(t, yaml.Unmarshal(b, &back))
	assert.Equal(t, *cfg, back)
}
