package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewConfigCmd creates and returns the config subcommand for the kvfs CLI.
// It prints the configuration after every source has been applied.
func NewConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration as YAML.

The output merges defaults, the config file, KVFS_* environment variables and
flags, and can be saved as a starting config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.cfg.YAML()
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
