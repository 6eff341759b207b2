package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout sets a deadline on each request context and answers 504 if
// the handler has not returned when it expires. Copilot endpoints (paths
// ending in /ask, /stream or /ws) are excluded: they bound retrieval and
// generation themselves and answer from the template when those run out.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 || selfBoundedPath(c.Request().URL.Path) {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					if c.Response().Committed {
						return nil
					}
					return echo.NewHTTPError(http.StatusGatewayTimeout, "request processing exceeded the allowed time limit")
				}
				return ctx.Err()
			}
		}
	}
}

func selfBoundedPath(path string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, suffix := range []string{"/copilot/ask", "/stream", "/ws"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
