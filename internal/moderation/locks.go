package moderation

import "sync"

type activityKey struct {
	chatID int64
	userID int64
}

// keyedMutex serializes decisions per (chat,user) pair while leaving different
// pairs free to run concurrently. Entries are reference counted and removed
// once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[activityKey]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[activityKey]*lockEntry{}}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key activityKey) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
