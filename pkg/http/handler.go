package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Handler mounts a group of routes on the server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// RoutesFunc adapts a function to Handler.
type RoutesFunc func(e *echo.Echo)

func (f RoutesFunc) RegisterRoutes(e *echo.Echo) { f(e) }

// ReadinessHandler serves GET /readyz, answering 503 while check fails.
func ReadinessHandler(check func(ctx context.Context) error, timeout time.Duration) Handler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return RoutesFunc(func(e *echo.Echo) {
		e.GET("/readyz", func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			if err := check(ctx); err != nil {
				return AppErrorResponse(c, NewAppError("not_ready", "store", "market store unavailable", http.StatusServiceUnavailable).WithError(err))
			}
			return SuccessResponse(c, map[string]string{"status": "ready"})
		})
	})
}
