package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Health is the liveness probe used by load balancers. It does not touch
// the database so a slow store never takes the instance out of rotation.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Check reports whether one backing service answers.
type Check func(ctx context.Context) error

// Readiness reports whether every backing service answers. Failing checks
// are named in the body; causes are only logged.
func Readiness(checks map[string]Check, log *zap.Logger) echo.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := make(map[string]string, len(names))
		code := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				log.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
				status[name] = "down"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "up"
		}
		return c.JSON(code, echo.Map{"checks": status})
	}
}
