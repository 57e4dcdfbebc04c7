package fsdb

import (
	"context"
	"slices"
	"sync"
	"time"
)

// LockManager hands out exclusive locks keyed by string. Entries are
// reference counted and dropped once nobody holds or waits on them, so
// the table only grows with the number of keys in use.
type LockManager struct {
	mu      sync.Mutex
	entries map[string]*lockEntry

	// OnWait, if set, is called with the time spent acquiring each key set.
	OnWait func(time.Duration)
}

// lockEntry is a one-slot semaphore; a channel lets waiters give up when
// their context is cancelled.
type lockEntry struct {
	sem  chan struct{}
	refs int
}

func NewLockManager() *LockManager {
	return &LockManager{entries: make(map[string]*lockEntry)}
}

// Acquire locks every key, waiting as long as needed or until ctx is done.
// Keys are deduplicated and taken in sorted order so that two callers with
// overlapping key sets cannot deadlock. The returned func releases them.
func (m *LockManager) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	start := time.Now()
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		e := m.ref(key)
		select {
		case e.sem <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			m.unref(key)
			m.release(held)
			return nil, ctx.Err()
		}
	}
	if m.OnWait != nil {
		m.OnWait(time.Since(start))
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.release(held) })
	}, nil
}

// Held reports how many keys currently have a holder or waiter.
func (m *LockManager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *LockManager) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		m.mu.Lock()
		e := m.entries[keys[i]]
		m.mu.Unlock()
		<-e.sem
		m.unref(keys[i])
	}
}

func (m *LockManager) ref(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *LockManager) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}
