package fsdb

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAcquireReleasesEntries(t *testing.T) {
	m := NewLockManager()
	release, err := m.Acquire(context.Background(), "p:/a", "d:/", "p:/a")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if got := m.Held(); got != 2 {
		t.Errorf("Expected 2 held keys, got %d", got)
	}
	release()
	release() // second call is a no-op
	if got := m.Held(); got != 0 {
		t.Errorf("Expected lock table to be empty after release, got %d", got)
	}
}

func TestAcquireIsExclusive(t *testing.T) {
	m := NewLockManager()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), "p:/same")
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("Expected at most one holder at a time, saw %d", maxSeen)
	}
}

// TestAcquireOverlappingSetsNoDeadlock takes overlapping key sets in
// opposite argument orders from many goroutines.
func TestAcquireOverlappingSetsNoDeadlock(t *testing.T) {
	m := NewLockManager()
	done := make(chan struct{})

	go func() {
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				keys := []string{"d:/a", "d:/b", "p:/a/x"}
				if i%2 == 0 {
					keys = []string{"p:/a/x", "d:/b", "d:/a"}
				}
				release, err := m.Acquire(context.Background(), keys...)
				if err != nil {
					t.Errorf("Acquire failed: %v", err)
					return
				}
				release()
			}(i)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Acquire deadlocked - test timed out")
	}
	if got := m.Held(); got != 0 {
		t.Errorf("Expected lock table to be empty, got %d", got)
	}
}

func TestAcquireHonoursCancellation(t *testing.T) {
	m := NewLockManager()
	release, err := m.Acquire(context.Background(), "d:/")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// "d:/" sorts first, so this caller holds nothing when it gives up.
	_, err = m.Acquire(ctx, "p:/x", "d:/")
	if err != context.DeadlineExceeded {
		t.Fatalf("Expected context.DeadlineExceeded, got %v", err)
	}
	if got := m.Held(); got != 1 {
		t.Errorf("Expected only the original holder to remain, got %d entries", got)
	}
}

func TestAcquireCancellationReleasesPartialSet(t *testing.T) {
	m := NewLockManager()
	release, err := m.Acquire(context.Background(), "p:/b")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Takes "p:/a", then blocks on "p:/b" and must hand "p:/a" back.
	if _, err := m.Acquire(ctx, "p:/a", "p:/b"); err == nil {
		t.Fatal("Expected Acquire to fail")
	}

	other, err := m.Acquire(context.Background(), "p:/a")
	if err != nil {
		t.Fatalf("p:/a should be free again: %v", err)
	}
	other()
	release()
}

func TestOnWaitIsReported(t *testing.T) {
	m := NewLockManager()
	var calls int
	m.OnWait = func(time.Duration) { calls++ }

	release, err := m.Acquire(context.Background(), "p:/a")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	release()
	if calls != 1 {
		t.Errorf("Expected OnWait to be called once, got %d", calls)
	}
}
