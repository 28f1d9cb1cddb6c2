package repofake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/jobboard-auth/internal/model"
	"github.com/iliyamo/jobboard-auth/internal/repository"
)

// FakeTokenRepo keeps refresh tokens in memory. Rotate holds the lock across
// the conditional revoke and the insert, mirroring the row lock the SQL
// transaction takes.
type FakeTokenRepo struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[string]model.RefreshToken
	Now    func() time.Time

	// StoreErr, when set, is returned by Store and Rotate's insert.
	StoreErr error
}

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{rows: map[string]model.RefreshToken{}, Now: time.Now}
}

func (r *FakeTokenRepo) Store(_ context.Context, rec model.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(rec)
}

func (r *FakeTokenRepo) insertLocked(rec model.RefreshToken) error {
	if r.StoreErr != nil {
		return r.StoreErr
	}
	if _, dup := r.rows[rec.TokenHash]; dup {
		return errors.New("duplicate token hash")
	}
	r.nextID++
	rec.ID = r.nextID
	r.rows[rec.TokenHash] = rec
	return nil
}

func (r *FakeTokenRepo) GetByHash(_ context.Context, tokenHash string) (model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[tokenHash]
	if !ok {
		return model.RefreshToken{}, repository.ErrTokenNotFound
	}
	return t, nil
}

func (r *FakeTokenRepo) Rotate(_ context.Context, oldHash string, next model.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.Now()
	old, ok := r.rows[oldHash]
	if !ok || !old.Active(now) {
		return repository.ErrTokenNotActive
	}
	if err := r.insertLocked(next); err != nil {
		return err
	}
	old.Revoked = true
	used := now.UTC()
	old.LastUsedAt = &used
	r.rows[oldHash] = old
	return nil
}

func (r *FakeTokenRepo) Revoke(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.rows[tokenHash]; ok {
		t.Revoked = true
		r.rows[tokenHash] = t
	}
	return nil
}

func (r *FakeTokenRepo) RevokeAllForUser(_ context.Context, userID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h, t := range r.rows {
		if t.UserID == userID {
			t.Revoked = true
			r.rows[h] = t
		}
	}
	return nil
}

// ActiveCount reports how many tokens of userID could still be rotated.
func (r *FakeTokenRepo) ActiveCount(userID uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	now := r.Now()
	for _, t := range r.rows {
		if t.UserID == userID && t.Active(now) {
			n++
		}
	}
	return n
}
