package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/jobboard-auth/internal/model"
)

// Access is the requirement a route declares. The zero value is public.
type Access struct {
	authenticated bool
	roles         []model.Role
}

// Public routes accept anonymous callers.
func Public() Access { return Access{} }

// Authenticated routes accept any signed-in, active user.
func Authenticated() Access { return Access{authenticated: true} }

// Roles routes accept signed-in users holding one of roles.
func Roles(roles ...model.Role) Access { return Access{authenticated: true, roles: roles} }

// IsPublic reports whether the route needs no session.
func (a Access) IsPublic() bool { return !a.authenticated }

// Gate enforces a route's Access against the session resolved for the
// current request: 401 when there is none, 403 when the stored role is not
// allowed, 500 when the session could not be resolved. Nothing is cached
// between requests.
func Gate(a Access) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if a.IsPublic() {
			return next
		}
		return func(c echo.Context) error {
			s := SessionFrom(c)
			if s == nil && sessionFailed(c) {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
			}
			if s == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			if len(a.roles) > 0 && !s.HasRole(a.roles...) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
