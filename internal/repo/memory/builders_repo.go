package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ethlas/builderhub/internal/domain/builder"
)

// BuildersRepo is an in-process store used for dev runs and tests.
type BuildersRepo struct {
	mu    sync.RWMutex
	items map[string]builder.Builder
}

func NewBuildersRepo() *BuildersRepo {
	return &BuildersRepo{
		items: make(map[string]builder.Builder),
	}
}

func (r *BuildersRepo) Create(_ context.Context, b builder.Builder) (string, error) {
	b.ID = uuid.NewString()

	r.mu.Lock()
	r.items[b.ID] = b
	r.mu.Unlock()

	return b.ID, nil
}

func (r *BuildersRepo) GetByID(_ context.Context, id string) (builder.Builder, error) {
	r.mu.RLock()
	b, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return builder.Builder{}, builder.ErrNotFound
	}

	return b, nil
}

// GetByEmail returns the first match, newest first, so lookups stay
// deterministic even if duplicate emails exist in the store.
func (r *BuildersRepo) GetByEmail(_ context.Context, email string) (builder.Builder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found builder.Builder
	ok := false

	for _, b := range r.items {
		if b.Email != email {
			continue
		}

		if !ok || b.JoinDate > found.JoinDate {
			found = b
			ok = true
		}
	}

	if !ok {
		return builder.Builder{}, builder.ErrNotFound
	}

	return found, nil
}

func (r *BuildersRepo) List(_ context.Context, limit int) ([]builder.Builder, error) {
	r.mu.RLock()
	out := make([]builder.Builder, 0, len(r.items))

	for _, b := range r.items {
		out = append(out, b)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].JoinDate > out[j].JoinDate
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (r *BuildersRepo) Update(_ context.Context, id string, b builder.Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.items[id]

	if !ok {
		return builder.ErrNotFound
	}

	b.ID = id
	r.items[id] = b

	return nil
}

func (r *BuildersRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.items[id]

	if !ok {
		return builder.ErrNotFound
	}

	delete(r.items, id)

	return nil
}
