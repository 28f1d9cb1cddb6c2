package router

import (
	"net/http"

	"github.com/iliyamo/jobboard-auth/internal/middleware"
)

// authRoutes covers /api/auth. Every route here sits behind the request
// throttle; sign-in is additionally limited per email by the service.
func authRoutes(d Deps) []Route {
	a := d.Auth
	routes := []Route{
		{Method: http.MethodPost, Path: "/api/auth/signin", Handler: a.SignIn, Access: middleware.Public(), Throttle: true},
		{Method: http.MethodPost, Path: "/api/auth/signup", Handler: a.SignUp, Access: middleware.Public(), Throttle: true},
		{Method: http.MethodPost, Path: "/api/auth/refresh", Handler: a.Refresh, Access: middleware.Public(), Throttle: true},
		{Method: http.MethodDelete, Path: "/api/auth/refresh", Handler: a.SignOut, Access: middleware.Public(), Throttle: true},
		{Method: http.MethodGet, Path: "/api/auth/session", Handler: a.Session, Access: middleware.Authenticated(), Throttle: true},
		{Method: http.MethodDelete, Path: "/api/auth/sessions", Handler: a.SignOutEverywhere, Access: middleware.Authenticated(), Throttle: true},
	}
	if d.OAuth != nil {
		routes = append(routes,
			Route{Method: http.MethodGet, Path: "/api/auth/oauth/:provider", Handler: d.OAuth.Start, Access: middleware.Public(), Throttle: true},
			Route{Method: http.MethodGet, Path: "/api/auth/oauth/:provider/callback", Handler: d.OAuth.Callback, Access: middleware.Public(), Throttle: true},
		)
	}
	return routes
}
