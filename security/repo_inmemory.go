package security

import (
	"context"
	"sync"
)

// InMemoryRepo is the in-process implementation used in DEV mode and tests.
type InMemoryRepo struct {
	mu     sync.RWMutex
	events []Event
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{}
}

func (r *InMemoryRepo) Append(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *InMemoryRepo) Exists(_ context.Context, userID, eventType string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.events {
		if e.UserID == userID && e.Type == eventType {
			return true, nil
		}
	}
	return false, nil
}

// Events returns a snapshot of recorded events, for tests and the DEV
// admin view.
func (r *InMemoryRepo) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make([]Event, len(r.events))
	copy(snapshot, r.events)
	return snapshot
}
