package flowstate

import (
	"errors"
	"sync"
	"time"
)

const defaultTTL = 10 * time.Minute

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu      sync.Mutex
	states  map[string]*State
	ttl     time.Duration
	nowTime func() time.Time
}

// NewInMemoryRepo creates a new in-memory flow state repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		states:  make(map[string]*State),
		ttl:     defaultTTL,
		nowTime: time.Now,
	}
}

// WithNowTime overrides the clock, used for testing expiry.
func (r *InMemoryRepo) WithNowTime(now func() time.Time) *InMemoryRepo {
	r.nowTime = now
	return r
}

// Upsert stores or updates a flow state
func (r *InMemoryRepo) Upsert(id string, state *State) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if state == nil {
		return errors.New("state cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Create a copy to prevent external modifications
	r.states[id] = &State{
		Nonce:         state.Nonce,
		RecoveryToken: state.RecoveryToken,
		ReturnURL:     state.ReturnURL,
		CreatedAt:     state.CreatedAt,
	}

	return nil
}

// Consume retrieves a flow state and deletes it. Expired entries are
// treated as not found.
func (r *InMemoryRepo) Consume(id string) (*State, error) {
	if id == "" {
		return nil, errors.New("id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, exists := r.states[id]
	if !exists {
		return nil, errors.New("state not found")
	}
	delete(r.states, id)

	if r.nowTime().Sub(state.CreatedAt) > r.ttl {
		return nil, errors.New("state expired")
	}

	return &State{
		Nonce:         state.Nonce,
		RecoveryToken: state.RecoveryToken,
		ReturnURL:     state.ReturnURL,
		CreatedAt:     state.CreatedAt,
	}, nil
}
