package services

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestLock(timeout time.Duration) *GenerationLock {
	return NewGenerationLock(timeout, zap.NewNop())
}

func TestLockAcquireRelease(t *testing.T) {
	lock := newTestLock(time.Minute)

	if !lock.Acquire("op-1") {
		t.Fatal("first Acquire() = false, want true")
	}
	if lock.Acquire("op-2") {
		t.Fatal("second Acquire() = true while held, want false")
	}

	lock.Release("op-1")

	if !lock.Acquire("op-2") {
		t.Fatal("Acquire() after release = false, want true")
	}
}

func TestLockFailFastForSameHolder(t *testing.T) {
	// Acquisition is not reentrant: even the current holder is rejected.
	lock := newTestLock(time.Minute)

	lock.Acquire("op-1")
	if lock.Acquire("op-1") {
		t.Error("re-Acquire() by holder = true, want false")
	}
}

func TestLockReleaseByNonHolderIgnored(t *testing.T) {
	lock := newTestLock(time.Minute)

	lock.Acquire("op-1")
	lock.Release("op-2")

	status := lock.Status()
	if !status.IsLocked || status.LockID != "op-1" {
		t.Errorf("lock released by non-holder, status = %+v", status)
	}
}

func TestLockReleaseWhenUnheldIgnored(t *testing.T) {
	lock := newTestLock(time.Minute)
	lock.Release("op-1") // must not panic or corrupt state

	if !lock.Acquire("op-2") {
		t.Error("Acquire() after spurious release = false, want true")
	}
}

func TestLockAutoRelease(t *testing.T) {
	lock := newTestLock(20 * time.Millisecond)

	lock.Acquire("op-1")
	if lock.Acquire("op-2") {
		t.Fatal("Acquire() during hold = true, want false")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if lock.Acquire("op-2") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("lock was never auto-released after timeout")
}

func TestLockStaleTimerDoesNotReleaseNewHold(t *testing.T) {
	lock := newTestLock(30 * time.Millisecond)

	lock.Acquire("op-1")
	lock.Release("op-1")

	// The new hold starts its own timer; op-1's (stopped or stale) timer must
	// not clear it early.
	if !lock.Acquire("op-2") {
		t.Fatal("Acquire() = false after release")
	}
	time.Sleep(15 * time.Millisecond)

	status := lock.Status()
	if !status.IsLocked || status.LockID != "op-2" {
		t.Errorf("new hold cleared prematurely, status = %+v", status)
	}
}

func TestLockForceClear(t *testing.T) {
	lock := newTestLock(time.Minute)

	lock.Acquire("op-1")
	lock.ForceClear()

	if lock.Status().IsLocked {
		t.Error("lock still held after ForceClear")
	}
	if !lock.Acquire("op-2") {
		t.Error("Acquire() after ForceClear = false, want true")
	}

	lock.ForceClear() // clearing an unheld lock is a no-op
}

func TestLockStatus(t *testing.T) {
	lock := newTestLock(time.Minute)

	status := lock.Status()
	if status.IsLocked || status.LockID != "" {
		t.Errorf("unheld Status() = %+v, want zero value", status)
	}

	lock.Acquire("op-1")
	status = lock.Status()
	if !status.IsLocked || status.LockID != "op-1" {
		t.Errorf("held Status() = %+v", status)
	}
	if status.HeldFor < 0 {
		t.Errorf("HeldFor = %v, want >= 0", status.HeldFor)
	}
}

func TestLockMutualExclusionUnderContention(t *testing.T) {
	lock := newTestLock(time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if lock.Acquire(string(rune('a' + id%26))) {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if acquired != 1 {
		t.Errorf("%d goroutines acquired the lock concurrently, want 1", acquired)
	}
}
