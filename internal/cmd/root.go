package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dendrascience/kvfs/version"
)

// NewRootCmd creates and returns the root cobra command for the kvfs CLI.
// It sets up all subcommands, command groups, and the persistent flags
// shared by every subcommand.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "kvfs",
		Short: "kvfs - A FUSE filesystem stored in an embedded key-value database",
		Long: `kvfs is a FUSE filesystem whose metadata, directory structure and file
contents all live in an embedded key-value database.

Every filesystem call reads a consistent snapshot and commits its changes as a
single atomic batch, so the store never holds a half-applied operation.

Use subcommands to perform different operations:
  - mount: Mount a kvfs store at a specified mountpoint
  - check: Verify a store's structural invariants
  - info: Show a store's identity and usage
  - import: Copy a directory tree into a store
  - seed: Fill a store with a random tree for testing
  - config: Print the effective configuration`,
		Version:       version.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (default $XDG_CONFIG_HOME/kvfs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text, json, logfmt")

	groupUtilities := "utilities"
	groupFilesystem := "filesystem"

	// Add command groups for better organization
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupFilesystem,
		Title: "Filesystem Operations",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupUtilities,
		Title: "Utility Commands",
	})

	mountCmd := NewMountCmd(a)
	checkCmd := NewCheckCmd(a)
	infoCmd := NewInfoCmd(a)
	importCmd := NewImportCmd(a)
	seedCmd := NewSeedCmd(a)
	configCmd := NewConfigCmd(a)
	versionCmd := NewVersionCmd()

	mountCmd.GroupID = groupFilesystem
	checkCmd.GroupID = groupFilesystem
	infoCmd.GroupID = groupFilesystem
	importCmd.GroupID = groupUtilities
	seedCmd.GroupID = groupUtilities
	configCmd.GroupID = groupUtilities
	versionCmd.GroupID = groupUtilities

	// Add subcommands
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}
