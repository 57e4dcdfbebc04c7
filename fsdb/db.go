package fsdb

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dendrascience/kvfs/kv"
)

// DB layers the read-compute-commit protocol over a kv.Store.
//
// The store only makes single batches atomic. Update closes the gap
// between reading current state and committing the next state by holding
// caller-named locks for the whole sequence.
type DB struct {
	store  kv.Store
	locks  *LockManager
	logger *slog.Logger
}

// New wraps store. The DB owns store and closes it in Close.
func New(store kv.Store, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{
		store:  store,
		locks:  NewLockManager(),
		logger: logger,
	}
}

// Locks exposes the lock manager, mainly for instrumentation.
func (db *DB) Locks() *LockManager {
	return db.locks
}

// View runs fn against a consistent snapshot without taking locks.
// Mutating methods of the Tx fail with ErrReadOnly.
func (db *DB) View(ctx context.Context, fn func(tx *Tx) error) error {
	var fnErr error
	err := db.store.View(ctx, func(r kv.Reader) error {
		fnErr = fn(&Tx{db: db, r: r, staged: make(map[string]staged)})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return storeErr("view", nil, err)
}

// Update acquires locks, runs fn against a snapshot taken after the locks
// are held, and commits everything fn staged as one atomic batch. If fn
// returns an error nothing is written.
func (db *DB) Update(ctx context.Context, locks []string, fn func(tx *Tx) error) error {
	release, err := db.locks.Acquire(ctx, locks...)
	if err != nil {
		return err
	}
	defer release()

	batch := kv.NewBatch()
	var fnErr error
	err = db.store.View(ctx, func(r kv.Reader) error {
		fnErr = fn(&Tx{db: db, r: r, batch: batch, staged: make(map[string]staged)})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return storeErr("view", nil, err)
	}

	if err := db.store.Commit(ctx, batch); err != nil {
		err = storeErr("commit", nil, err)
		if errors.Is(err, ErrStoreFailure) {
			db.logger.Error("batch commit failed", "ops", batch.Len(), "error", err)
		}
		return err
	}
	return nil
}

// NextInode allocates a fresh inode number.
func (db *DB) NextInode() (uint64, error) {
	id, err := db.store.NextID()
	if err != nil {
		return 0, storeErr("sequence", nil, err)
	}
	return id + RootInode + 1, nil
}

// Close closes the underlying store.
func (db *DB) Close() error {
	return storeErr("close", nil, db.store.Close())
}

// Tx reads through a store snapshot and stages writes into a batch.
// Reads observe the Tx's own staged writes.
type Tx struct {
	db     *DB
	r      kv.Reader
	batch  *kv.Batch
	staged map[string]staged
}

type staged struct {
	value   []byte
	deleted bool
}

// NextInode allocates a fresh inode number for a record created in tx.
func (tx *Tx) NextInode() (uint64, error) {
	return tx.db.NextInode()
}

func (tx *Tx) get(key []byte) ([]byte, error) {
	if s, ok := tx.staged[string(key)]; ok {
		if s.deleted {
			return nil, ErrNotFound
		}
		return s.value, nil
	}
	b, err := tx.r.Get(key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get", key, err)
	}
	return b, nil
}

func (tx *Tx) put(key, value []byte) error {
	if tx.batch == nil {
		return ErrReadOnly
	}
	tx.batch.Put(key, value)
	tx.staged[string(key)] = staged{value: value}
	return nil
}

func (tx *Tx) del(key []byte) error {
	if tx.batch == nil {
		return ErrReadOnly
	}
	tx.batch.Delete(key)
	tx.staged[string(key)] = staged{deleted: true}
	return nil
}

// Meta returns a filesystem-wide metadata value.
func (tx *Tx) Meta(name string) ([]byte, error) {
	return tx.get(metaKey(name))
}

// PutMeta stores a filesystem-wide metadata value.
func (tx *Tx) PutMeta(name string, value []byte) error {
	return tx.put(metaKey(name), value)
}

// iterate walks committed records under prefix; staged writes are not
// visited.
func (tx *Tx) iterate(prefix string, fn func(key string, value []byte) error) error {
	var fnErr error
	err := tx.r.Iterate([]byte(prefix), func(key, value []byte) error {
		fnErr = fn(string(key), value)
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return storeErr("iterate", []byte(prefix), err)
}

// keys is iterate for callers that never look at values.
func (tx *Tx) keys(prefix string, fn func(key string) error) error {
	var fnErr error
	err := tx.r.Keys([]byte(prefix), func(key []byte) error {
		fnErr = fn(string(key))
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return storeErr("iterate", []byte(prefix), err)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
