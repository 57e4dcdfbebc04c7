package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dendrascience/kvfs/version"
)

// NewVersionCmd creates the version subcommand, which prints build details
// beyond the one-line --version output.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version.Fprint(cmd.OutOrStdout(), cmd.Root().Name())
			return nil
		},
	}
}
