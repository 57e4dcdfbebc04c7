package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// sequenceKey holds the lease for NextID. It lives in the "s:" namespace,
// which no other component writes to.
var sequenceKey = []byte("s:id")

// sequenceBandwidth is how many IDs are leased from disk at once. Unused
// IDs of a lease are lost on close, so IDs are unique but not dense.
const sequenceBandwidth = 128

// Options configures a BadgerStore.
type Options struct {
	Dir        string // on-disk location, ignored when InMemory is set
	InMemory   bool
	SyncWrites bool
	Logger     *slog.Logger
}

// BadgerStore implements Store on top of BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger
}

var _ Store = (*BadgerStore)(nil)

// Open opens (creating if missing) a badger database.
func Open(opts Options) (*BadgerStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, errors.New("kv: store directory is required")
		}
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		bopts = badger.DefaultOptions(opts.Dir)
	}
	bopts = bopts.
		WithSyncWrites(opts.SyncWrites).
		WithLogger(newBadgerLogger(logger.WithGroup("badger")))

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	seq, err := db.GetSequence(sequenceKey, sequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to lease id sequence: %w", err)
	}

	return &BadgerStore{db: db, seq: seq, logger: logger}, nil
}

// View runs fn against a read-only snapshot.
func (s *BadgerStore) View(ctx context.Context, fn func(Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(badgerReader{txn: txn})
	})
}

// Commit writes b in a single badger transaction.
func (s *BadgerStore) Commit(ctx context.Context, b *Batch) error {
	if b.Len() == 0 {
		return nil
	}
	// Past this point the batch is either applied in full or not at all,
	// so cancellation is only honoured before the write is issued.
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			var err error
			switch op.Kind {
			case OpPut:
				err = txn.Set(op.Key, op.Value)
			case OpDelete:
				err = txn.Delete(op.Key)
			default:
				err = fmt.Errorf("kv: unknown op kind %d", op.Kind)
			}
			if err != nil {
				return fmt.Errorf("failed to stage %q: %w", op.Key, err)
			}
		}
		return nil
	})
}

// NextID returns the next value of the persistent sequence.
func (s *BadgerStore) NextID() (uint64, error) {
	return s.seq.Next()
}

// Close releases the sequence lease and closes the database.
func (s *BadgerStore) Close() error {
	var firstErr error
	if err := s.seq.Release(); err != nil {
		s.logger.Error("error releasing id sequence", "error", err)
		firstErr = err
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("error closing store", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type badgerReader struct {
	txn *badger.Txn
}

func (r badgerReader) Get(key []byte) ([]byte, error) {
	item, err := r.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (r badgerReader) Keys(prefix []byte, fn func(key []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := r.txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := fn(it.Item().KeyCopy(nil)); err != nil {
			return err
		}
	}
	return nil
}

func (r badgerReader) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := r.txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), value); err != nil {
			return err
		}
	}
	return nil
}
