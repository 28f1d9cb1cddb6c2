package model

import "time"

// TokenState is the lifecycle position of a refresh token. Only
// TokenIssued may authenticate anything.
type TokenState string

const (
	TokenIssued  TokenState = "ISSUED"
	TokenRevoked TokenState = "REVOKED"
	TokenExpired TokenState = "EXPIRED"
)

// RefreshToken models a row of `refresh_tokens`. The signed token itself is
// never stored; TokenHash is the SHA-256 hex digest of it and is unique.
//
// Rows are revoked rather than deleted so the table doubles as a history of
// issued sessions.
type RefreshToken struct {
	ID         uint64     `db:"id"`
	UserID     uint64     `db:"user_id"`
	TokenHash  string     `db:"token_hash"`
	DeviceInfo string     `db:"device_info"`
	IssuedAt   time.Time  `db:"issued_at"`
	ExpiresAt  time.Time  `db:"expires_at"`
	LastUsedAt *time.Time `db:"last_used_at"`
	Revoked    bool       `db:"revoked"`
}

// State reports where the token sits at instant now. Revocation wins over
// expiry so a rotated token keeps reporting REVOKED after it would have
// expired.
func (t RefreshToken) State(now time.Time) TokenState {
	switch {
	case t.Revoked:
		return TokenRevoked
	case !now.Before(t.ExpiresAt):
		return TokenExpired
	default:
		return TokenIssued
	}
}

// Active is shorthand for State(now) == TokenIssued.
func (t RefreshToken) Active(now time.Time) bool { return t.State(now) == TokenIssued }
