// Package repository holds the MySQL-backed stores. Callers distinguish
// outcomes through the sentinel errors below rather than driver errors.
package repository

import "errors"

// ErrUserNotFound is returned when no user row matches.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned when an insert hits the unique email index.
var ErrEmailExists = errors.New("email already exists")

// ErrTokenNotFound is returned when no refresh token row matches a hash.
var ErrTokenNotFound = errors.New("refresh token not found")

// ErrTokenNotActive is returned by Rotate when the presented token was
// already revoked, has expired, or lost a concurrent rotation.
var ErrTokenNotActive = errors.New("refresh token not active")
