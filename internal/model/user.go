package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is the coarse capability level of an account.
type Role string

const (
	RoleUser     Role = "USER"
	RoleEmployer Role = "EMPLOYER"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole normalises s and reports whether it names a known role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleUser, RoleEmployer, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// User mirrors the `users` table.
//
// PasswordHash is nil for accounts created through an OAuth provider; such
// accounts cannot sign in with a password.
type User struct {
	ID              uint64     `db:"id"`
	Email           string     `db:"email"`
	PasswordHash    *string    `db:"password_hash"`
	FirstName       string     `db:"first_name"`
	LastName        string     `db:"last_name"`
	Role            Role       `db:"role"`
	IsActive        bool       `db:"is_active"`
	IsEmailVerified bool       `db:"is_email_verified"`
	IsPhoneVerified bool       `db:"is_phone_verified"`
	LastLoginAt     *time.Time `db:"last_login_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// HasPassword reports whether the account can authenticate with a password.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// AccountPatch carries the admin-editable fields of a user. Nil fields are
// left untouched.
type AccountPatch struct {
	Role     *Role
	IsActive *bool
}

// Empty reports whether the patch changes nothing.
func (p AccountPatch) Empty() bool { return p.Role == nil && p.IsActive == nil }
