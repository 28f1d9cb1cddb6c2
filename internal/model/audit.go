package model

import "time"

// AuditEvent is one row of the `audit_logs` table, written by the audit
// consumer from events published on the broker.
type AuditEvent struct {
	ID         uint64    `db:"id" json:"id"`
	EventID    string    `db:"event_id" json:"eventId"`
	Type       string    `db:"type" json:"type"`
	UserID     *uint64   `db:"user_id" json:"userId,omitempty"`
	Email      string    `db:"email" json:"email,omitempty"`
	IP         string    `db:"ip" json:"ip,omitempty"`
	UserAgent  string    `db:"user_agent" json:"userAgent,omitempty"`
	Detail     string    `db:"detail" json:"detail,omitempty"`
	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`
}
