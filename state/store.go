package state

import (
	"sync"
	"time"
)

// Store accumulates per-entity updates as they arrive from the host and
// hands out immutable snapshots.
type Store struct {
	entities map[string]Entity
	mu       sync.RWMutex
}

func NewStore() *Store {
	return &Store{entities: make(map[string]Entity)}
}

func (s *Store) SetStatus(entityID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entities[entityID]
	e.Status = status
	s.entities[entityID] = e
}

func (s *Store) SetLastChanged(entityID string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entities[entityID]
	e.LastChanged = t
	s.entities[entityID] = e
}

// Forget drops entityID so that lookups fall back to their defaults.
func (s *Store) Forget(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, entityID)
}

// Snapshot copies the current values. Entities whose status has not arrived
// yet are left out so consumers fall back to their defaults.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(s.entities))
	for id, e := range s.entities {
		if e.Status == "" {
			continue
		}
		snap[id] = e
	}
	return snap
}
