package auth

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by the service. The HTTP layer maps each one to a
// status and a fixed message; the underlying cause is only ever logged.
var (
	// ErrInvalidToken covers every token failure: malformed, forged,
	// expired, wrong type, revoked or already rotated. Callers cannot tell
	// which check failed.
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrNoToken            = errors.New("no token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("too many attempts")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNotFound           = errors.New("not found")
	// ErrUserVanished means a verified token names a user that no longer
	// exists.
	ErrUserVanished = errors.New("token owner no longer exists")
	// ErrTokenPersist means a token was signed but could not be recorded,
	// so it was never handed out.
	ErrTokenPersist = errors.New("token persistence failed")
)

// RateLimitError carries how long the caller should wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// ValidationError describes a rejected input in terms safe to show the
// client.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
