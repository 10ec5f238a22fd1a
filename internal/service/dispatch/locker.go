package dispatch

import (
	"sync"

	"github.com/google/uuid"
)

// keyedLock serializes state machine transitions per delivery. Entries are
// reference counted and removed once the last holder releases, so the map
// does not grow with the delivery history.
type keyedLock struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{entries: make(map[uuid.UUID]*lockEntry)}
}

// Lock acquires the per-delivery mutex.
func (l *keyedLock) Lock(id uuid.UUID) {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the per-delivery mutex.
func (l *keyedLock) Unlock(id uuid.UUID) {
	l.mu.Lock()
	e, ok := l.entries[id]
	if ok {
		e.refs--
		if e.refs == 0 {
			delete(l.entries, id)
		}
	}
	l.mu.Unlock()

	if ok {
		e.mu.Unlock()
	}
}
