package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"portfolio-api-go/internal/model"
)

func writeError(c echo.Context, status int, message string) error {
	return c.JSON(status, model.ErrorEnvelope{Status: status, Error: message})
}

// NewErrorHandler returns an Echo HTTPErrorHandler that renders every
// framework error (404, 405, 413, bind failures, panics) as the JSON envelope.
func NewErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	logger = logger.With("component", "error_handler")
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := http.StatusText(status)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			switch m := he.Message.(type) {
			case string:
				message = m
			case error:
				message = m.Error()
			case nil:
				message = http.StatusText(status)
			default:
				message = fmt.Sprint(m)
			}
		} else {
			logger.Error("unhandled error", "err", err, "path", c.Request().URL.Path)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = writeError(c, status, message)
		}
		if werr != nil {
			logger.Error("writing error response", "err", werr)
		}
	}
}
