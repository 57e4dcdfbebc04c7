// Package cmd implements the kvfs command-line interface.
//
// Each subcommand lives in its own file with a constructor returning a
// *cobra.Command:
//   - mount: serve a store over FUSE, with optional Prometheus metrics
//   - check: verify a store's structural invariants
//   - info: print a store's identity and usage
//   - import: copy a host directory tree into a store
//   - seed: fill a store with a random timestamped tree
//   - config: print the effective configuration
//   - version: print build information
//
// Configuration is resolved once per invocation in the root command's
// PersistentPreRunE, from defaults, the config file, KVFS_* environment
// variables and flags, in increasing order of precedence.
package cmd
