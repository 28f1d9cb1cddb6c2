package middleware

// identity.go holds the helpers that read the resolved session back out of
// the echo context.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/jobboard-auth/internal/auth"
)

// SessionFrom returns the session resolved for this request, or nil for an
// anonymous caller.
func SessionFrom(c echo.Context) *auth.Session {
	s, _ := c.Get(sessionKey).(*auth.Session)
	return s
}

func sessionFailed(c echo.Context) bool {
	failed, _ := c.Get(sessionFailedKey).(bool)
	return failed
}

// userID returns the caller's id as a string, or "guest".
func userID(c echo.Context) string {
	if s := SessionFrom(c); s != nil {
		return strconv.FormatUint(s.User.ID, 10)
	}
	return "guest"
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
