package middleware

import (
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"portfolio-api-go/internal/model"
)

// rateLimitExpiry is how long an idle client's limiter is kept.
const rateLimitExpiry = 3 * time.Minute

// RateLimit returns a per-IP token bucket limiter allowing rps requests per
// second with a burst of at least one. Throttled requests get a 429 envelope.
func RateLimit(rps float64) echo.MiddlewareFunc {
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(rps),
		Burst:     int(math.Max(1, math.Ceil(rps))),
		ExpiresIn: rateLimitExpiry,
	})

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, model.ErrorEnvelope{
				Status: http.StatusTooManyRequests,
				Error:  "Too many requests",
			})
		},
	})
}
