package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fleetward/fleetward/internal/pkg/container"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter registers every route. limiterStorage may be nil, in which
// case rate limit counters stay in process memory.
func InstallRouter(app *fiber.App, c *container.Container, limiterStorage fiber.Storage) {
	setup(app, NewMetricsRouter(c), NewApiRouter(c, limiterStorage))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
