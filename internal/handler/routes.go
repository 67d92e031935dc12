package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, content *ContentHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/status", health.Status)

	e.GET("/", content.Banner)
	e.GET("/rahmadip", content.Info)
	e.GET("/tools", content.Tools)
	e.GET("/tools/:tool", content.ToolsByName)
	e.GET("/space", content.Space)
	e.GET("/projects", content.Projects)
	e.GET("/projects/:path", content.Project)
	e.GET("/projects/:path/neq", content.RelatedProjects)
	e.POST("/message", content.SubmitMessage)
}
