package moderation

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	t.Parallel()

	km := newKeyedMutex()
	key := activityKey{chatID: 1, userID: 2}

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(key)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Fatalf("counter = %d, want 100", counter)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	t.Parallel()

	km := newKeyedMutex()
	unlockA := km.Lock(activityKey{chatID: 1, userID: 2})

	// A different pair must not block behind the held lock.
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock(activityKey{chatID: 1, userID: 3})
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	t.Parallel()

	km := newKeyedMutex()
	var wg sync.WaitGroup
	for i := int64(0); i < 10; i++ {
		wg.Add(1)
		go func(i int64) {
			defer wg.Done()
			unlock := km.Lock(activityKey{chatID: i, userID: i})
			unlock()
		}(i)
	}
	wg.Wait()

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.locks) != 0 {
		t.Fatalf("lock table holds %d stale entries", len(km.locks))
	}
}
