package ws

import (
	"sync"

	"github.com/google/uuid"
)

// PresenceTracker maps users to their live connection ids. Online state is
// edge-triggered: Connect reports true only on the 0->1 transition,
// Disconnect only on 1->0. Mutations to one user's set are serialized by a
// per-entry lock; the outer map lock is only held for entry lookup and
// insert/remove, so unrelated users never contend.
type PresenceTracker struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*presenceEntry
}

// An entry is retired (dead) in the same critical section that observes its
// 1->0 transition, so the offline edge and the entry's end of life are one
// atomic decision. A retired entry is never revived: a caller that fetched
// its pointer before retirement finds dead set, drops the stale pointer from
// the map and retries the lookup.
type presenceEntry struct {
	mu    sync.Mutex
	conns map[string]struct{}
	dead  bool
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{entries: make(map[uuid.UUID]*presenceEntry)}
}

// Connect registers a connection and reports whether the user just came
// online.
func (t *PresenceTracker) Connect(userID uuid.UUID, connID string) bool {
	for {
		t.mu.Lock()
		e, ok := t.entries[userID]
		if !ok {
			e = &presenceEntry{conns: make(map[string]struct{})}
			t.entries[userID] = e
		}
		t.mu.Unlock()

		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			t.reap(userID, e)
			continue
		}
		e.conns[connID] = struct{}{}
		online := len(e.conns) == 1
		e.mu.Unlock()
		return online
	}
}

// Disconnect removes a connection and reports whether the user just went
// offline. A connection id that is not registered is a no-op.
func (t *PresenceTracker) Disconnect(userID uuid.UUID, connID string) bool {
	for {
		t.mu.Lock()
		e, ok := t.entries[userID]
		t.mu.Unlock()
		if !ok {
			return false
		}

		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			t.reap(userID, e)
			continue
		}
		if _, present := e.conns[connID]; !present {
			e.mu.Unlock()
			return false
		}
		delete(e.conns, connID)
		offline := len(e.conns) == 0
		if offline {
			e.dead = true
		}
		e.mu.Unlock()

		if offline {
			t.reap(userID, e)
		}
		return offline
	}
}

// reap drops a retired entry from the map unless a newer entry has already
// replaced it.
func (t *PresenceTracker) reap(userID uuid.UUID, e *presenceEntry) {
	t.mu.Lock()
	if t.entries[userID] == e {
		delete(t.entries, userID)
	}
	t.mu.Unlock()
}

// IsOnline reports whether the user holds at least one live connection.
func (t *PresenceTracker) IsOnline(userID uuid.UUID) bool {
	t.mu.Lock()
	e, ok := t.entries[userID]
	t.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.dead && len(e.conns) > 0
}
