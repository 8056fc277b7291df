package broadcast

import (
	"sync"

	"traffic-telemetry/internal/traffic"
)

// Update is a snapshot together with the tick that produced it.
type Update struct {
	ID       uint64
	Snapshot *traffic.Snapshot
}

// Store holds the most recently published update for on-demand readers.
// Implementations must be safe for concurrent use and must never block on
// the broadcast loop.
type Store interface {
	Latest() (Update, bool)
	Save(u Update)
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	mu     sync.RWMutex
	latest Update
	ok     bool
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Latest implements Store.Latest.
func (s *InMemoryStore) Latest() (Update, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.ok
}

// Save implements Store.Save. Updates older than the stored one are ignored.
func (s *InMemoryStore) Save(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ok && u.ID <= s.latest.ID {
		return
	}
	s.latest = u
	s.ok = true
}
