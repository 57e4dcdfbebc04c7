package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dendrascience/kvfs/kvfs"
	"github.com/dendrascience/kvfs/version"
)

// NewMountCmd creates and returns the mount subcommand for the kvfs CLI.
// It handles mounting kvfs stores at specified mountpoints.
func NewMountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mount STORE_PATH MOUNTPOINT",
		Short: "Mount a kvfs store",
		Long: `Mount a kvfs store at the specified mountpoint.

STORE_PATH is the directory holding the key-value database; it is created
if missing. MOUNTPOINT is the directory where the filesystem will be mounted.
The two must not contain one another.

The filesystem is served until it is unmounted or the process receives
SIGINT or SIGTERM.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMount(cmd, a, args[0], args[1])
		},
	}

	cmd.Flags().Bool("read-only", false, "Mount read-only")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	cmd.Flags().String("fsname", "kvfs", "Filesystem name shown in the mount table")
	cmd.Flags().Bool("sync-writes", true, "Sync every commit to disk before it returns")

	return cmd
}

func runMount(cmd *cobra.Command, a *app, storePath, mountpoint string) error {
	if !a.cfg.Store.InMemory && pathsOverlap(storePath, mountpoint) {
		return fmt.Errorf("store path %s and mountpoint %s overlap", storePath, mountpoint)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *kvfs.Metrics
	if a.cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = kvfs.NewMetrics(reg)

		srv := serveMetrics(a, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	d, err := a.open(ctx, storePath, openOptions{init: true, metrics: metrics})
	if err != nil {
		return err
	}
	defer d.Destroy()

	options := []fuse.MountOption{
		fuse.FSName(a.cfg.Mount.FSName),
		fuse.Subtype("kvfs"),
	}
	if a.cfg.Mount.ReadOnly {
		options = append(options, fuse.ReadOnly())
	}

	c, err := fuse.Mount(mountpoint, options...)
	if err != nil {
		return fmt.Errorf("failed to mount %s: %w", mountpoint, err)
	}
	defer c.Close()

	served := make(chan struct{})
	defer close(served)
	go func() {
		select {
		case <-served:
			return
		case <-ctx.Done():
		}
		a.logger.Info("shutting down, unmounting", "mountpoint", mountpoint)
		if err := fuse.Unmount(mountpoint); err != nil {
			a.logger.Error("unmount failed", "mountpoint", mountpoint, "error", err)
		}
	}()

	a.logger.Info("kvfs mounted",
		"version", version.GetVersion(),
		"mountpoint", mountpoint,
		"store", a.cfg.Store.Path,
		"read_only", a.cfg.Mount.ReadOnly,
	)
	if err := fs.Serve(c, kvfs.NewFS(d)); err != nil {
		return fmt.Errorf("serving %s: %w", mountpoint, err)
	}
	a.logger.Info("shutdown complete")
	return nil
}

func serveMetrics(a *app, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "addr", srv.Addr, "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", srv.Addr)
	return srv
}

// pathsOverlap reports whether one of the two paths contains the other.
// Relative paths are resolved against the working directory.
func pathsOverlap(path1, path2 string) bool {
	abs1, err1 := filepath.Abs(path1)
	abs2, err2 := filepath.Abs(path2)
	if err1 != nil || err2 != nil {
		return filepath.Clean(path1) == filepath.Clean(path2)
	}
	return within(abs1, abs2) || within(abs2, abs1)
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
