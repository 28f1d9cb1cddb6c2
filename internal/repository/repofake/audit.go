package repofake

import (
	"context"
	"sort"
	"sync"

	"github.com/iliyamo/jobboard-auth/internal/model"
)

// FakeAuditRepo records audit rows in insertion order.
type FakeAuditRepo struct {
	mu     sync.Mutex
	events []model.AuditEvent
}

func (r *FakeAuditRepo) Insert(_ context.Context, ev model.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.EventID == ev.EventID {
			return nil
		}
	}
	ev.ID = uint64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

func (r *FakeAuditRepo) ListRecent(_ context.Context, userID *uint64, limit int) ([]model.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.AuditEvent{}
	for _, e := range r.events {
		if userID != nil && (e.UserID == nil || *e.UserID != *userID) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
