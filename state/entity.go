package state

import "time"

// Entity is the host's current value for one entity reference.
type Entity struct {
	LastChanged time.Time `json:"last_changed"`
	Status      string    `json:"state"`
}

// HasLastChanged reports whether the host supplied a change timestamp.
func (e Entity) HasLastChanged() bool {
	return !e.LastChanged.IsZero()
}

// Snapshot maps entity ids to their current value. It is read-only once
// handed out and superseded in full by the next one.
type Snapshot map[string]Entity

// Get never fails on a missing key, an empty id or a nil snapshot.
func (s Snapshot) Get(entityID string) (Entity, bool) {
	if entityID == "" || s == nil {
		return Entity{}, false
	}
	e, ok := s[entityID]
	return e, ok
}

// Status returns the entity status, or fallback when there is no entry.
func (s Snapshot) Status(entityID, fallback string) string {
	if e, ok := s.Get(entityID); ok {
		return e.Status
	}
	return fallback
}
