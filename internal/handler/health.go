package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"portfolio-api-go/internal/access"
	"portfolio-api-go/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	allow   *access.AllowList
	version Version
}

// statusResponse is the body of GET /status.
type statusResponse struct {
	Status         string   `json:"status"`
	Version        string   `json:"version"`
	StoreURL       string   `json:"store_url"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, allow *access.AllowList, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, allow: allow, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status reports the build version, the store in use and the trusted origins.
// The store key is never included.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:         "ok",
		Version:        string(h.version),
		StoreURL:       h.cfg.Store.URL,
		AllowedOrigins: h.allow.Origins(),
	})
}
