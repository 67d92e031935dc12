package middleware

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"portfolio-api-go/internal/access"
	"portfolio-api-go/internal/metrics"
	"portfolio-api-go/internal/model"
)

// forbiddenMessage is the fixed error text for rejected origins.
const forbiddenMessage = "Forbidden access"

// AccessGuard returns an Echo middleware that rejects requests whose Origin
// and Referer are both untrusted. Rejected requests never reach a handler.
// The metrics parameter is optional.
func AccessGuard(allow *access.AllowList, m *metrics.Metrics, logger *slog.Logger) echo.MiddlewareFunc {
	logger = logger.With("component", "access_guard")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			origin := req.Header.Get(echo.HeaderOrigin)
			referer := req.Referer()

			if allow.Allowed(origin, referer) {
				return next(c)
			}

			if m != nil {
				m.AccessDenied.Inc()
			}
			logger.Warn("forbidden origin",
				"origin", origin,
				"referer", referer,
				"path", req.URL.Path,
				"remote_ip", c.RealIP(),
			)
			return c.JSON(http.StatusForbidden, model.ErrorEnvelope{
				Status: http.StatusForbidden,
				Error:  forbiddenMessage,
			})
		}
	}
}
