package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func get(t *testing.T, s Store, key string) ([]byte, error) {
	t.Helper()
	var value []byte
	err := s.View(context.Background(), func(r Reader) error {
		var err error
		value, err = r.Get([]byte(key))
		return err
	})
	return value, err
}

func TestCommitAndGet(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	b := NewBatch()
	b.Put([]byte("a:/x"), []byte("one"))
	b.Put([]byte("a:/y"), []byte("two"))
	require.NoError(t, s.Commit(ctx, b))

	v, err := get(t, s, "a:/x")
	require.NoError(t, err)
	assert.Equal(t, "one", string(v))

	b = NewBatch()
	b.Delete([]byte("a:/x"))
	require.NoError(t, s.Commit(ctx, b))

	_, err = get(t, s, "a:/x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommitEmptyBatch(t *testing.T) {
	s := openMemory(t)
	assert.NoError(t, s.Commit(context.Background(), NewBatch()))
}

func TestCommitCancelledContext(t *testing.T) {
	s := openMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBatch()
	b.Put([]byte("a:/x"), []byte("one"))
	err := s.Commit(ctx, b)
	require.ErrorIs(t, err, context.Canceled)

	_, err = get(t, s, "a:/x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeysSkipsValues(t *testing.T) {
	s, err := Open(Options{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	b := NewBatch()
	b.Put([]byte("c:/big"), make([]byte, 2<<20))
	b.Put([]byte("c:/small"), []byte("x"))
	b.Put([]byte("d:/"), []byte("x"))
	require.NoError(t, s.Commit(ctx, b))

	var keys []string
	err = s.View(ctx, func(r Reader) error {
		return r.Keys([]byte("c:"), func(key []byte) error {
			keys = append(keys, string(key))
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c:/big", "c:/small"}, keys)

	stop := errors.New("stop")
	err = s.View(ctx, func(r Reader) error {
		return r.Keys([]byte("c:"), func([]byte) error { return stop })
	})
	assert.ErrorIs(t, err, stop)
}

func TestIteratePrefix(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	b := NewBatch()
	b.Put([]byte("a:/b"), []byte("2"))
	b.Put([]byte("a:/a"), []byte("1"))
	b.Put([]byte("d:/"), []byte("x"))
	require.NoError(t, s.Commit(ctx, b))

	var keys []string
	err := s.View(ctx, func(r Reader) error {
		return r.Iterate([]byte("a:"), func(key, value []byte) error {
			keys = append(keys, string(key))
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:/a", "a:/b"}, keys)

	stop := errors.New("stop")
	count := 0
	err = s.View(ctx, func(r Reader) error {
		return r.Iterate([]byte("a:"), func(key, value []byte) error {
			count++
			return stop
		})
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, count)
}

func TestNextIDPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	first, err := s.NextID()
	require.NoError(t, err)
	second, err := s.NextID()
	require.NoError(t, err)
	assert.Greater(t, second, first)
	require.NoError(t, s.Close())

	s, err = Open(Options{Dir: dir})
	require.NoError(t, err)
	defer s.Close()
	third, err := s.NextID()
	require.NoError(t, err)
	assert.Greater(t, third, second)
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}
