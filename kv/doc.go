// Package kv wraps the embedded key-value engine used by kvfs.
//
// The engine offers point reads, ordered prefix iteration, a persistent ID
// sequence and atomic batched writes. It does not offer transactions that
// span a read and a later write; callers that need read-modify-write
// semantics must serialize themselves (see package fsdb).
//
// BadgerStore is the production implementation, backed by BadgerDB. Opening
// it with Options.InMemory gives a throwaway store for tests.
package kv
