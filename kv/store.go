package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Reader.Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Reader is a consistent, read-only view of the store. A Reader handed to a
// View callback is only valid until the callback returns.
type Reader interface {
	Get(key []byte) ([]byte, error)
	// Iterate calls fn for every key starting with prefix, in key order.
	// Returning a non-nil error from fn stops the iteration and is returned.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
	// Keys is Iterate without reading values.
	Keys(prefix []byte, fn func(key []byte) error) error
}

// Store is the embedded ordered key-value engine. Atomicity is only
// guaranteed within a single Commit.
type Store interface {
	View(ctx context.Context, fn func(Reader) error) error
	// Commit applies every operation in b or none of them.
	Commit(ctx context.Context, b *Batch) error
	// NextID returns a persistent, strictly increasing identifier.
	NextID() (uint64, error)
	Close() error
}

// OpKind identifies a batched mutation.
type OpKind uint8

const (
	OpPut OpKind = iota
	OpDelete
)

// Op is a single mutation within a Batch.
type Op struct {
	Kind  OpKind
	Key   []byte
	Value []byte
}

// Batch collects mutations that are committed together.
type Batch struct {
	ops []Op
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Put stages key=value.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, Op{Kind: OpPut, Key: key, Value: value})
}

// Delete stages removal of key.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, Op{Kind: OpDelete, Key: key})
}

// Len reports the number of staged operations.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Ops returns the staged operations in the order they were added.
func (b *Batch) Ops() []Op {
	return b.ops
}
