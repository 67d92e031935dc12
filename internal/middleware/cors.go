package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"portfolio-api-go/internal/access"
)

// corsMaxAge is how long browsers may cache a preflight answer, in seconds.
const corsMaxAge = 86400

// CORS returns Echo's CORS middleware restricted to the trusted origins.
// Preflight requests are answered with 204.
func CORS(allow *access.AllowList) echo.MiddlewareFunc {
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: allow.Origins(),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
		MaxAge:       corsMaxAge,
	})
}
