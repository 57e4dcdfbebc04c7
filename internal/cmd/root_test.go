package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dendrascience/kvfs/fsdb"
	"github.com/dendrascience/kvfs/kv"
)

// run executes the CLI with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigCommand(t *testing.T) {
	out, err := run(t, "config", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, out, "level: debug")
	assert.Contains(t, out, "fsname: kvfs")
}

func TestConfigCommandRejectsBadLevel(t *testing.T) {
	_, err := run(t, "config", "--log-level", "loud")
	assert.Error(t, err)
}

func TestSeedCheckInfo(t *testing.T) {
	store := filepath.Join(t.TempDir(), "store")

	out, err := run(t, "seed", store, "--count", "50", "--depth", "3", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Created 50 files")

	out, err = run(t, "check", store, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Files checked: 50")
	assert.Contains(t, out, "Total problems: 0")

	out, err = run(t, "info", store, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Files: 50")
	assert.NotContains(t, out, "not initialized")
}

func TestCheckReportsProblems(t *testing.T) {
	store := filepath.Join(t.TempDir(), "store")
	_, err := run(t, "seed", store, "--count", "5", "--log-level", "error")
	require.NoError(t, err)

	// Drop the root listing behind the filesystem's back
	kvs, err := kv.Open(kv.Options{Dir: store})
	require.NoError(t, err)
	b := kv.NewBatch()
	b.Delete([]byte("d:" + fsdb.Root))
	require.NoError(t, kvs.Commit(context.Background(), b))
	require.NoError(t, kvs.Close())

	out, err := run(t, "check", store, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, out, "directory has no listing")
}

func TestCheckMissingStore(t *testing.T) {
	_, err := run(t, "check", filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestMountRejectsOverlap(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "mount", dir, filepath.Join(dir, "mnt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "kvfs version ")
	assert.Contains(t, out, "Go: go")
}
