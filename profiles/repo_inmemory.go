package profiles

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepo is the in-process implementation used in DEV mode and tests.
type InMemoryRepo struct {
	nowTime func() time.Time

	mu       sync.RWMutex
	profiles map[string]*Profile
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		nowTime:  time.Now,
		profiles: make(map[string]*Profile),
	}
}

func (r *InMemoryRepo) Get(_ context.Context, id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *InMemoryRepo) Upsert(_ context.Context, params UpsertParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowTime()
	if existing, ok := r.profiles[params.ID]; ok {
		existing.Role = params.Role
		existing.DisplayName = params.DisplayName
		existing.LastSignIn = params.SignInAt
		existing.UpdatedAt = now
		return nil
	}

	r.profiles[params.ID] = &Profile{
		ID:          params.ID,
		Role:        params.Role,
		DisplayName: params.DisplayName,
		LastSignIn:  params.SignInAt,
		UpdatedAt:   now,
		CreatedAt:   now,
	}
	return nil
}

func (r *InMemoryRepo) List(_ context.Context, offset, limit int) ([]*Profile, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		copied := *p
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := len(all)
	if offset >= total {
		return []*Profile{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}
