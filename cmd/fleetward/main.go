package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/fleetward/fleetward/internal/pkg/config"
	"github.com/fleetward/fleetward/internal/pkg/container"
	"github.com/fleetward/fleetward/internal/pkg/env"
	"github.com/fleetward/fleetward/internal/pkg/middleware"
	"github.com/fleetward/fleetward/internal/pkg/router"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if path := env.SetupEnvFile(); path != "" {
		log.Infof("[Main] Loaded environment from %s", path)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("[Main] Invalid configuration: %v", err)
	}
	if cfg.JWT.Secret == "" {
		log.Warn("[Main] JWT_SECRET is empty, bearer tokens are disabled")
	}

	c, err := container.Bootstrap(cfg)
	if err != nil {
		log.Fatalf("[Main] Startup failed: %v", err)
	}

	app := NewApplication(c)

	if cfg.Reconcile.Enabled {
		c.Scheduler.Start()
	}

	go func() {
		if err := app.Listen(cfg.ListenAddr()); err != nil {
			log.Fatalf("[Main] Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("[Main] Shutting down...")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Errorf("[Main] HTTP shutdown: %v", err)
	}
	if err := c.Close(); err != nil {
		log.Errorf("[Main] Closing resources: %v", err)
	}
}

func NewApplication(c *container.Container) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "fleetward",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	if _, err := os.Stat("./public/docs/v1/openapi.yml"); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/api/",
			FilePath: "./public/docs/v1/openapi.yml",
			Path:     "v1",
		}))
	}

	router.InstallRouter(app, c, limiterStorage(c))
	return app
}

// limiterStorage shares rate limit counters through redis when it is reachable.
func limiterStorage(c *container.Container) fiber.Storage {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Cache.Ping(ctx); err != nil {
		log.Warnf("[Main] Cache unavailable, rate limits are per process: %v", err)
		return nil
	}
	return middleware.NewLimiterStorage(c.Cache)
}
