package middleware

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/jobboard-auth/internal/auth"
)

// Cookie names shared by the session middleware and the auth handlers.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

const (
	sessionKey       = "session"
	sessionFailedKey = "session_failed"
)

// SessionResolver turns an access token into the current session.
// auth.Service satisfies it.
type SessionResolver interface {
	ResolveSession(ctx context.Context, raw string) (*auth.Session, error)
}

// Session resolves the access-token cookie on every request and stores the
// result for Gate and the handlers. A request without a valid session is
// passed on anonymously. A credential store failure is logged and the request
// also continues anonymously, marked so Gate can answer 500 on protected
// routes while public ones such as sign-out still run.
func Session(r SessionResolver, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := ""
			if ck, err := c.Cookie(AccessCookie); err == nil {
				raw = ck.Value
			}
			sess, err := r.ResolveSession(c.Request().Context(), raw)
			if err != nil {
				log.Error("resolve session", zap.Error(err), zap.String("request_id", requestID(c)))
				c.Set(sessionFailedKey, true)
				return next(c)
			}
			if sess != nil {
				c.Set(sessionKey, sess)
			}
			return next(c)
		}
	}
}
