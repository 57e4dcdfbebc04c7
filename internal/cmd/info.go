package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dendrascience/kvfs/fsdb"
)

// NewInfoCmd creates and returns the info subcommand for the kvfs CLI.
// It prints a store's identity and usage counters.
func NewInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info STORE_PATH",
		Short: "Show a kvfs store's identity and usage",
		Long: `Show the filesystem ID of a kvfs store together with the number of files
and directories it holds and the bytes of file content stored.

The store is opened read-only in the sense that nothing is written to it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd, a, args[0])
		},
	}
}

func runInfo(cmd *cobra.Command, a *app, storePath string) error {
	if _, err := os.Stat(storePath); os.IsNotExist(err) {
		return fmt.Errorf("store directory does not exist: %s", storePath)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	d, err := a.open(ctx, storePath, openOptions{})
	if err != nil {
		return err
	}
	defer d.Destroy()

	id := "(not initialized)"
	fsid, err := d.FSID(ctx)
	switch {
	case err == nil:
		id = fsid.String()
	case !errors.Is(err, fsdb.ErrNotFound):
		return fmt.Errorf("failed to read filesystem id: %w", err)
	}

	st, err := d.Statfs(ctx)
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}

	fmt.Fprintf(out, "Store: %s\n", storePath)
	fmt.Fprintf(out, "Filesystem ID: %s\n", id)
	fmt.Fprintf(out, "Directories: %d\n", st.Directories)
	fmt.Fprintf(out, "Files: %d\n", st.Files)
	fmt.Fprintf(out, "Content bytes: %d\n", st.Bytes)
	return nil
}
