// Package queue defines the auth audit events exchanged over the message
// broker and the consumer that persists them.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/jobboard-auth/internal/model"
	"github.com/iliyamo/jobboard-auth/internal/utils"
)

// AuditQueueName is the durable queue auth events are published to.
const AuditQueueName = "auth.events"

// Event types.
const (
	EventSignIn            = "auth.signin"
	EventSignInFailed      = "auth.signin_failed"
	EventSignInRateLimited = "auth.signin_rate_limited"
	EventSignUp            = "auth.signup"
	EventOAuthSignIn       = "auth.oauth_signin"
	EventRefreshed         = "auth.refreshed"
	EventRefreshRejected   = "auth.refresh_rejected"
	EventSignOut           = "auth.signout"
	EventSignOutAll        = "auth.signout_all"
	EventAccountUpdated    = "auth.account_updated"
)

// AuthEvent is published whenever an authentication decision is made.
type AuthEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     *uint64   `json:"user_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewAuthEvent stamps a fresh id and timestamp.
func NewAuthEvent(typ string, userID *uint64, email string) AuthEvent {
	return AuthEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     userID,
		Email:      email,
		OccurredAt: time.Now().UTC(),
	}
}

// Column widths of audit_logs, in characters.
const (
	maxTypeLen      = 64
	maxEmailLen     = 255
	maxIPLen        = 64
	maxUserAgentLen = 255
	maxDetailLen    = 1024
)

// Record converts the event into its audit_logs row, bounding every text
// field to its column.
func (e AuthEvent) Record() model.AuditEvent {
	return model.AuditEvent{
		EventID:    e.ID,
		Type:       utils.Truncate(e.Type, maxTypeLen),
		UserID:     e.UserID,
		Email:      utils.Truncate(e.Email, maxEmailLen),
		IP:         utils.Truncate(e.IP, maxIPLen),
		UserAgent:  utils.Truncate(e.UserAgent, maxUserAgentLen),
		Detail:     utils.Truncate(e.Detail, maxDetailLen),
		OccurredAt: e.OccurredAt.UTC(),
	}
}
