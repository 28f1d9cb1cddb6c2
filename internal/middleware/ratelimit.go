package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/jobboard-auth/internal/ratelimit"
)

// Throttle limits requests with l, keyed per strategy (see rateKey). A nil
// limiter disables it. Limiter errors let the request through.
func Throttle(l ratelimit.Limiter, strategy string, log *zap.Logger) echo.MiddlewareFunc {
	if l == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(strategy, c)
			d, err := l.Allow(c.Request().Context(), key)
			if err != nil {
				log.Warn("throttle unavailable", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				log.Info("request throttled", zap.String("key", key), zap.Duration("retry_after", d.RetryAfter))
				return TooManyRequests(c, d.RetryAfter)
			}
			return next(c)
		}
	}
}

// TooManyRequests writes the 429 response shared by every limiter.
func TooManyRequests(c echo.Context, retryAfter time.Duration) error {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
	return c.JSON(http.StatusTooManyRequests, echo.Map{
		"error":       "too many requests",
		"retry_after": secs,
	})
}

// rateKey builds the bucket key: "ip", "ip_route" (default) or "user_route".
// Anonymous callers count as user "guest".
func rateKey(strategy string, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	route := c.Request().Method + " " + c.Path()

	switch strings.ToLower(strategy) {
	case "ip":
		return "ip:" + ip
	case "user_route":
		return "user:" + userID(c) + ":route:" + route
	default:
		return "ip:" + ip + ":route:" + route
	}
}
