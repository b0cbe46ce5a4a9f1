package ws

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPresenceTracker_EdgeTriggered(t *testing.T) {
	tracker := NewPresenceTracker()
	userID := uuid.New()

	assert.True(t, tracker.Connect(userID, "conn-1"), "first connection must report online transition")
	assert.False(t, tracker.Connect(userID, "conn-2"), "second connection must not report a transition")
	assert.True(t, tracker.IsOnline(userID))

	assert.False(t, tracker.Disconnect(userID, "conn-1"), "one connection remains, no offline transition")
	assert.True(t, tracker.IsOnline(userID))

	assert.True(t, tracker.Disconnect(userID, "conn-2"), "last connection must report offline transition")
	assert.False(t, tracker.IsOnline(userID))
}

func TestPresenceTracker_DisconnectUnknownUser(t *testing.T) {
	tracker := NewPresenceTracker()
	assert.False(t, tracker.Disconnect(uuid.New(), "conn-1"))
}

func TestPresenceTracker_ReconnectAfterOffline(t *testing.T) {
	tracker := NewPresenceTracker()
	userID := uuid.New()

	assert.True(t, tracker.Connect(userID, "a"))
	assert.True(t, tracker.Disconnect(userID, "a"))
	assert.True(t, tracker.Connect(userID, "b"), "fresh connection after offline is a new online transition")
}

func TestPresenceTracker_ConcurrentUsers(t *testing.T) {
	tracker := NewPresenceTracker()

	users := make([]uuid.UUID, 16)
	for i := range users {
		users[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				connID := fmt.Sprintf("conn-%d", i)
				tracker.Connect(userID, connID)
				tracker.Disconnect(userID, connID)
			}
		}(u)
	}
	wg.Wait()

	for _, u := range users {
		assert.False(t, tracker.IsOnline(u))
	}
}

// Interleaved connect/disconnect pairs on one user must produce balanced
// edges: every reported online transition is matched by exactly one offline
// transition, even when a disconnect emptying the set races a fresh connect.
func TestPresenceTracker_InterleavedPairsBalanceEdges(t *testing.T) {
	tracker := NewPresenceTracker()
	userID := uuid.New()

	const workers = 4
	const pairs = 20000
	var online, offline int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < pairs; i++ {
				connID := fmt.Sprintf("conn-%d-%d", w, i)
				if tracker.Connect(userID, connID) {
					atomic.AddInt64(&online, 1)
				}
				if tracker.Disconnect(userID, connID) {
					atomic.AddInt64(&offline, 1)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, online, offline, "online and offline edge counts must match")
	assert.Positive(t, online)
	assert.False(t, tracker.IsOnline(userID))
}

func TestPresenceTracker_ConcurrentSameUser(t *testing.T) {
	tracker := NewPresenceTracker()
	userID := uuid.New()

	const n = 64
	var wg sync.WaitGroup
	var mu sync.Mutex
	online := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if tracker.Connect(userID, fmt.Sprintf("conn-%d", i)) {
				mu.Lock()
				online++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, online, "exactly one connect observes the online edge")
	assert.True(t, tracker.IsOnline(userID))

	offline := 0
	for i := 0; i < n; i++ {
		if tracker.Disconnect(userID, fmt.Sprintf("conn-%d", i)) {
			offline++
		}
	}
	assert.Equal(t, 1, offline, "exactly one disconnect observes the offline edge")
}
