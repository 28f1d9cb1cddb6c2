// Package repofake provides in-memory stores with the same observable
// semantics as the MySQL repositories, for tests.
package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/jobboard-auth/internal/model"
	"github.com/iliyamo/jobboard-auth/internal/repository"
)

// FakeUserRepo is a mutex-guarded map of users keyed by id.
type FakeUserRepo struct {
	mu     sync.RWMutex
	nextID uint64
	users  map[uint64]model.User
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{users: map[uint64]model.User{}}
}

func (r *FakeUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.Email = repository.NormalizeEmail(u.Email)
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	r.nextID++
	u.ID = r.nextID
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	r.users[u.ID] = *u
	return nil
}

func (r *FakeUserRepo) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email = repository.NormalizeEmail(email)
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (r *FakeUserRepo) GetByID(_ context.Context, id uint64) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (r *FakeUserRepo) TouchLastLogin(_ context.Context, id uint64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		at = at.UTC()
		u.LastLoginAt = &at
		r.users[id] = u
	}
	return nil
}

func (r *FakeUserRepo) UpdateAccount(_ context.Context, id uint64, p model.AccountPatch) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return u, nil
}

// Delete removes a user outright, simulating an account that disappears
// between token issuance and use.
func (r *FakeUserRepo) Delete(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}
