// Package fsdb maps a hierarchical filesystem onto an ordered key-value
// store.
//
// Each path owns up to three records in disjoint key namespaces:
//   - an attribute record (type, permission bits, size, inode, timestamps)
//   - a directory listing, present iff the path is a directory
//   - a content blob, present iff the path is a regular file
//
// The store commits single batches atomically but cannot hold a
// transaction open between a read and a write. DB.Update supplies the
// missing isolation: it takes the caller's per-path and per-directory
// locks, hands a Tx bound to a fresh snapshot to the caller, and commits
// whatever the Tx staged as one batch before releasing the locks. No lock
// ever spans the whole filesystem.
package fsdb
