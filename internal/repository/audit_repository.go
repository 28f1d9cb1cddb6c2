package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/jobboard-auth/internal/model"
)

// AuditRepo stores auth audit events delivered by the broker consumer.
type AuditRepo struct{ DB *sqlx.DB }

func NewAuditRepo(db *sqlx.DB) *AuditRepo { return &AuditRepo{DB: db} }

// Insert stores ev. Redelivered events carry the same event_id and are
// ignored.
func (r *AuditRepo) Insert(ctx context.Context, ev model.AuditEvent) error {
	if _, err := r.DB.NamedExecContext(ctx,
		`INSERT IGNORE INTO audit_logs (event_id, type, user_id, email, ip, user_agent, detail, occurred_at)
		 VALUES (:event_id, :type, :user_id, :email, :ip, :user_agent, :detail, :occurred_at)`,
		ev); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListRecent returns the newest events first, optionally for one user.
func (r *AuditRepo) ListRecent(ctx context.Context, userID *uint64, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT id, event_id, type, user_id, email, ip, user_agent, detail, occurred_at FROM audit_logs`
	args := []any{}
	if userID != nil {
		q += " WHERE user_id=?"
		args = append(args, *userID)
	}
	q += " ORDER BY occurred_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	events := []model.AuditEvent{}
	if err := r.DB.SelectContext(ctx, &events, q, args...); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}
