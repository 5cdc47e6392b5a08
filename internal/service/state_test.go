package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"yobot/internal/model"
)

func TestStateTracker_GetSet(t *testing.T) {
	tr := NewStateTracker()

	if got := tr.Get("+100"); got != model.StateNone {
		t.Errorf("initial state = %s, want NONE", got)
	}

	tr.Set("+100", model.StateAwaitingPropertyID)
	if got := tr.Get("+100"); got != model.StateAwaitingPropertyID {
		t.Errorf("state = %s, want AWAITING_PROPERTY_ID", got)
	}
	if got := tr.Get("+200"); got != model.StateNone {
		t.Errorf("other sender state = %s, want NONE", got)
	}
	if tr.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", tr.Pending())
	}

	tr.Set("+100", model.StateNone)
	if tr.Pending() != 0 {
		t.Errorf("Pending = %d after reset, want 0", tr.Pending())
	}
}

func TestStateTracker_LockSerializesSameSender(t *testing.T) {
	tr := NewStateTracker()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := tr.Lock("+100")
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}
	if n := tr.locks.size(); n != 0 {
		t.Errorf("%d locks left after all released", n)
	}
}

func TestStateTracker_DifferentSendersProceed(t *testing.T) {
	tr := NewStateTracker()
	unlockA := tr.Lock("+100")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := tr.Lock("+200")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on +200 blocked behind +100")
	}
}

func TestKeyedMutex_UnlockIsIdempotent(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.lock("a")
	unlock()
	unlock()
	if k.size() != 0 {
		t.Errorf("size = %d, want 0", k.size())
	}
}
