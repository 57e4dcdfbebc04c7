package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewCheckCmd creates and returns the check subcommand for the kvfs CLI.
// It verifies the structural invariants of a store without modifying it.
func NewCheckCmd(a *app) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "check STORE_PATH",
		Short: "Verify a kvfs store's structural invariants",
		Long: `Verify the structural invariants of a kvfs store.

This command walks every record in the store and reports:
  - paths missing from their parent's directory listing
  - listings that name paths which do not exist
  - directories without a listing, files without content
  - file sizes that disagree with their content
  - records that cannot be decoded

The store is opened but never modified. Exits non-zero if any problem is found.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, a, args[0], verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	return cmd
}

func runCheck(cmd *cobra.Command, a *app, storePath string, verbose bool) error {
	// Opening a missing path would silently create an empty store
	if _, err := os.Stat(storePath); os.IsNotExist(err) {
		return fmt.Errorf("store directory does not exist: %s", storePath)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if verbose {
		fmt.Fprintf(out, "Checking kvfs store at %s\n", storePath)
	}

	d, err := a.open(ctx, storePath, openOptions{})
	if err != nil {
		return err
	}
	defer d.Destroy()

	violations, err := d.Check(ctx)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	st, err := d.Statfs(ctx)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	if len(violations) > 0 {
		fmt.Fprintf(out, "Store %s has %d problems:\n", storePath, len(violations))
		for _, v := range violations {
			fmt.Fprintf(out, "  - %s\n", v)
		}
	} else if verbose {
		fmt.Fprintf(out, "Store %s is consistent\n", storePath)
	}

	fmt.Fprintf(out, "\nCheck complete:\n")
	fmt.Fprintf(out, "  Directories checked: %d\n", st.Directories)
	fmt.Fprintf(out, "  Files checked: %d\n", st.Files)
	fmt.Fprintf(out, "  Total problems: %d\n", len(violations))

	if len(violations) > 0 {
		return fmt.Errorf("store %s has %d problems", storePath, len(violations))
	}
	return nil
}
