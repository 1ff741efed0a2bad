package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/fleetward/fleetward/internal/pkg/container"
)

type MetricsRouter struct {
	c *container.Container
}

func (h MetricsRouter) InstallRouter(app *fiber.App) {
	app.Get("/metrics", adaptor.HTTPHandler(h.c.Metrics.Handler()))
}

func NewMetricsRouter(c *container.Container) *MetricsRouter {
	return &MetricsRouter{c: c}
}
