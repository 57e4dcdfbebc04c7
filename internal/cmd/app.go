package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dendrascience/kvfs/fsdb"
	"github.com/dendrascience/kvfs/internal/config"
	"github.com/dendrascience/kvfs/internal/logging"
	"github.com/dendrascience/kvfs/kv"
	"github.com/dendrascience/kvfs/kvfs"
)

// app carries the state resolved once per invocation by the root command.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

// setup loads configuration and installs the logger. Subcommand flags
// bound to configuration keys are visible through cmd.Flags().
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// openOptions selects how open prepares the store.
type openOptions struct {
	// init creates the root directory if missing; read-only commands
	// leave the store untouched
	init    bool
	metrics *kvfs.Metrics
}

// open opens the store at storePath (overriding store.path) and wraps it
// in a dispatcher. The caller must call Destroy.
func (a *app) open(ctx context.Context, storePath string, opts openOptions) (*kvfs.Dispatcher, error) {
	if storePath != "" {
		a.cfg.Store.Path = storePath
	}
	if a.cfg.Store.Path == "" && !a.cfg.Store.InMemory {
		return nil, errors.New("no store path given")
	}

	store, err := kv.Open(kv.Options{
		Dir:        a.cfg.Store.Path,
		InMemory:   a.cfg.Store.InMemory,
		SyncWrites: a.cfg.Store.SyncWrites,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, err
	}

	d := kvfs.NewDispatcher(fsdb.New(store, a.logger), kvfs.Options{
		Logger:  a.logger,
		Metrics: opts.metrics,
	})
	if opts.init {
		if err := d.Init(ctx); err != nil {
			d.Destroy()
			return nil, fmt.Errorf("failed to initialize filesystem: %w", err)
		}
	}
	return d, nil
}
