// Package router declares every HTTP route of the service in one table.
package router

import (
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/jobboard-auth/internal/handler"
	"github.com/iliyamo/jobboard-auth/internal/middleware"
	"github.com/iliyamo/jobboard-auth/internal/ratelimit"
)

// Route is one entry of the route table. Access is enforced by
// middleware.Gate on every request; Throttle puts the route behind the
// request throttle.
type Route struct {
	Method   string
	Path     string
	Handler  echo.HandlerFunc
	Access   middleware.Access
	Throttle bool
}

// Deps is everything New needs. OAuth, Admin, Throttle and Ready are optional.
type Deps struct {
	Auth        *handler.AuthHandler
	Admin       *handler.AdminHandler
	OAuth       *handler.OAuthHandler
	Sessions    middleware.SessionResolver
	Throttle    ratelimit.Limiter
	ThrottleKey string
	Ready       map[string]handler.Check
	CORSOrigins []string

	// TrustedProxies are the ranges allowed to set X-Forwarded-For. Without
	// them the peer address is the client address.
	TrustedProxies []*net.IPNet
	Logger         *zap.Logger
}

// Routes returns the full route table.
func Routes(d Deps) []Route {
	routes := []Route{
		{Method: http.MethodGet, Path: "/healthz", Handler: handler.Health, Access: middleware.Public()},
	}
	if len(d.Ready) > 0 {
		routes = append(routes, Route{Method: http.MethodGet, Path: "/readyz", Handler: handler.Readiness(d.Ready, d.Logger), Access: middleware.Public()})
	}
	routes = append(routes, authRoutes(d)...)
	routes = append(routes, adminRoutes(d)...)
	return routes
}

// New builds the echo instance with the shared middleware chain and the
// route table registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler(d.Logger)
	e.IPExtractor = ipExtractor(d.TrustedProxies)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	if len(d.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowHeaders:     []string{echo.HeaderContentType},
			AllowCredentials: true,
		}))
	}
	e.Use(middleware.RequestLogger(d.Logger))
	e.Use(middleware.Session(d.Sessions, d.Logger))

	throttle := middleware.Throttle(d.Throttle, d.ThrottleKey, d.Logger)
	for _, r := range Routes(d) {
		mws := make([]echo.MiddlewareFunc, 0, 2)
		if r.Throttle {
			mws = append(mws, throttle)
		}
		mws = append(mws, middleware.Gate(r.Access))
		e.Add(r.Method, r.Path, r.Handler, mws...)
	}
	return e
}

// ipExtractor decides what c.RealIP reports. The throttle keys and the audit
// log both rely on it, so client headers are only believed when they arrive
// through a configured proxy.
func ipExtractor(proxies []*net.IPNet) echo.IPExtractor {
	if len(proxies) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range proxies {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}
