package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/jobboard-auth/internal/model"
	"github.com/iliyamo/jobboard-auth/internal/repository"
)

// Session is the identity resolved for one request. It is rebuilt on every
// request and never cached.
type Session struct {
	User   model.User
	Claims *Claims
}

// HasRole reports whether the current role of the user, as stored, is one
// of roles.
func (s *Session) HasRole(roles ...model.Role) bool {
	for _, r := range roles {
		if s.User.Role == r {
			return true
		}
	}
	return false
}

// ResolveSession turns an access token into a session. Absent, invalid or
// expired tokens, missing users and deactivated users all yield (nil, nil);
// an error means the credential store itself failed.
func (s *Service) ResolveSession(ctx context.Context, raw string) (*Session, error) {
	if raw == "" {
		return nil, nil
	}
	claims, err := s.issuer.VerifyAccessToken(raw)
	if err != nil {
		return nil, nil
	}
	uid, _ := claims.UserID()
	u, err := s.users.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.log.Debug("session user missing", zap.Uint64("user_id", uid))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, nil
	}
	return &Session{User: u, Claims: claims}, nil
}
