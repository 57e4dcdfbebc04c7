// Package main provides the kvfs command-line interface.
//
// kvfs is a FUSE filesystem whose attributes, directory listings and file
// contents are all stored in an embedded ordered key-value database. Every
// filesystem call commits its changes as one atomic batch, and calls on
// unrelated paths proceed in parallel.
//
// The binary supports multiple subcommands:
//   - mount: Mount a kvfs store at a specified mountpoint
//   - check: Verify the structural invariants of a store
//   - info: Show a store's identity and usage
//   - import: Copy an existing directory tree into a store
//   - seed: Fill a store with a random tree for testing
//   - config: Print the effective configuration
package main
