package handler

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"portfolio-api-go/internal/config"
	"portfolio-api-go/internal/model"
	"portfolio-api-go/internal/service"
)

// ContentHandler serves the portfolio content routes.
type ContentHandler struct {
	service *service.ContentService
	banner  string
	logger  *slog.Logger
}

// NewContentHandler creates a ContentHandler.
func NewContentHandler(svc *service.ContentService, cfg *config.Config, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{
		service: svc,
		banner:  cfg.Server.Banner,
		logger:  logger.With("component", "content_handler"),
	}
}

// Banner answers GET / with a plain-text greeting.
func (h *ContentHandler) Banner(c echo.Context) error {
	return c.String(http.StatusOK, h.banner)
}

// Info answers GET /rahmadip.
func (h *ContentHandler) Info(c echo.Context) error {
	return h.respond(c)(h.service.Info(c.Request().Context()))
}

// Tools answers GET /tools.
func (h *ContentHandler) Tools(c echo.Context) error {
	return h.respond(c)(h.service.Tools(c.Request().Context()))
}

// ToolsByName answers GET /tools/:tool where :tool is a comma-separated list.
func (h *ContentHandler) ToolsByName(c echo.Context) error {
	return h.respond(c)(h.service.ToolsByName(c.Request().Context(), pathParam(c, "tool")))
}

// Space answers GET /space.
func (h *ContentHandler) Space(c echo.Context) error {
	return h.respond(c)(h.service.Space(c.Request().Context()))
}

// Projects answers GET /projects.
func (h *ContentHandler) Projects(c echo.Context) error {
	return h.respond(c)(h.service.Projects(c.Request().Context()))
}

// Project answers GET /projects/:path with a single object.
func (h *ContentHandler) Project(c echo.Context) error {
	return h.respond(c)(h.service.Project(c.Request().Context(), pathParam(c, "path")))
}

// RelatedProjects answers GET /projects/:path/neq.
func (h *ContentHandler) RelatedProjects(c echo.Context) error {
	return h.respond(c)(h.service.RelatedProjects(c.Request().Context(), pathParam(c, "path")))
}

// SubmitMessage answers POST /message. On success the store's status and
// status text are echoed back as plain text instead of JSON.
func (h *ContentHandler) SubmitMessage(c echo.Context) error {
	var msg model.Message
	if err := c.Bind(&msg); err != nil {
		return err
	}

	res, err := h.service.SubmitMessage(c.Request().Context(), &msg)
	if err != nil {
		return h.mapError(c, err)
	}
	return c.String(res.Status, res.StatusText)
}

// pathParam returns the decoded value of a path parameter, or the raw value
// when it is not valid percent-encoding.
func pathParam(c echo.Context, name string) string {
	raw := c.Param(name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// respond returns a writer for a (result, error) pair: raw store JSON on
// success, the error envelope otherwise.
func (h *ContentHandler) respond(c echo.Context) func(*model.Result, error) error {
	return func(res *model.Result, err error) error {
		if err != nil {
			return h.mapError(c, err)
		}
		return c.JSONBlob(http.StatusOK, res.Data)
	}
}

func (h *ContentHandler) mapError(c echo.Context, err error) error {
	path := c.Request().URL.Path

	var se *model.StoreError
	if errors.As(err, &se) {
		status := se.Status
		if status < 400 || status > 599 {
			// The store gave no usable status; do not echo a malformed one.
			status = http.StatusInternalServerError
		}
		h.logger.Warn("store rejected query", "err", err, "path", path, "status", status)
		return writeError(c, status, se.Message)
	}

	h.logger.Error("store unreachable", "err", err, "path", path)

	if errors.Is(err, context.DeadlineExceeded) {
		return writeError(c, http.StatusGatewayTimeout, "store request timed out")
	}

	if errors.Is(err, context.Canceled) {
		return writeError(c, http.StatusBadGateway, "client disconnected")
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return writeError(c, http.StatusBadGateway, "store host unreachable")
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return writeError(c, http.StatusGatewayTimeout, "store request timed out")
		}
		return writeError(c, http.StatusBadGateway, "store connection failed")
	}

	return writeError(c, http.StatusBadGateway, "store request failed")
}
