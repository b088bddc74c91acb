package interview

import (
	"sync"
	"testing"
	"time"
)

func TestSessionLocksSerializeSameSession(t *testing.T) {
	locks := newSessionLocks()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("s1")
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected exclusive access, saw %d concurrent holders", maxSeen)
	}
	if locks.size() != 0 {
		t.Fatalf("expected lock entries to be released, %d left", locks.size())
	}
}

func TestSessionLocksIndependentSessions(t *testing.T) {
	locks := newSessionLocks()

	unlockA := locks.lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := locks.lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another session blocked")
	}
	unlockA()
}
