package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fleetward/fleetward/app/models"
	"github.com/fleetward/fleetward/internal/pkg/container"
	"github.com/fleetward/fleetward/internal/pkg/middleware"
)

type ApiRouter struct {
	c       *container.Container
	storage fiber.Storage
}

// resourceRoutes is the handler set of one owned record type.
type resourceRoutes interface {
	HandleList(c *fiber.Ctx) error
	HandleGet(c *fiber.Ctx) error
	HandleCreate(c *fiber.Ctx) error
	HandleUpdate(c *fiber.Ctx) error
	HandleDelete(c *fiber.Ctx) error
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	ctrl := h.c.Controllers
	api := app.Group("/api", middleware.RateLimit(h.c.Config.RateLimit.Max, h.storage))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Unauthenticated
	v1.Get("/ping", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"status": "ok"})
	})
	v1.Post("/auth/token", ctrl.Account.HandleToken)
	v1.Post("/billing/webhook/:source", ctrl.Subscriptions.HandleWebhook)

	authed := v1.Group("", h.c.Identity.Handler())

	authed.Get("/account", ctrl.Account.HandleGetAccount)
	authed.Post("/account/api-key", ctrl.Account.HandleIssueAPIKey)
	authed.Delete("/account/api-key", ctrl.Account.HandleRevokeAPIKey)

	registerResource(authed, "/renewals", ctrl.Renewals)
	registerResource(authed, "/training-records", ctrl.TrainingRecords)
	registerResource(authed, "/audits", ctrl.Audits)
	registerResource(authed, "/spot-checks", ctrl.SpotChecks)

	parties := middleware.RequireRole(models.RoleTransportManager, models.RoleStandaloneUser, models.RolePlatformAdmin)
	authed.Get("/delegations", parties, ctrl.Delegations.HandleGet)
	authed.Post("/delegations", middleware.RequireRole(models.RoleStandaloneUser), ctrl.Delegations.HandleJoin)
	authed.Post("/delegations/:managerId/:clientId/status", parties, ctrl.Delegations.HandleStatus)

	authed.Get("/subscription", ctrl.Subscriptions.HandleGet)
	authed.Get("/subscription/history", ctrl.Subscriptions.HandleHistory)
	authed.Post("/subscription/trial", ctrl.Subscriptions.HandleStartTrial)

	admin := authed.Group("/admin", middleware.RequireAdmin)
	admin.Put("/delegations/:managerId/capacity", ctrl.Delegations.HandleSetCapacity)
	admin.Post("/subscriptions/:userId/payment", ctrl.Subscriptions.HandleAdminPayment)
	admin.Post("/subscriptions/:userId/lifetime", ctrl.Subscriptions.HandleAdminLifetime)
	admin.Delete("/subscriptions/:userId", ctrl.Subscriptions.HandleAdminCancel)
	admin.Post("/reconcile", ctrl.Reconcile.HandleRun)
	admin.Get("/reconcile", ctrl.Reconcile.HandleLast)
}

func registerResource(r fiber.Router, path string, h resourceRoutes) {
	g := r.Group(path)
	g.Get("/", h.HandleList)
	g.Post("/", h.HandleCreate)
	g.Get("/:id", h.HandleGet)
	g.Put("/:id", h.HandleUpdate)
	g.Delete("/:id", h.HandleDelete)
}

func NewApiRouter(c *container.Container, storage fiber.Storage) *ApiRouter {
	return &ApiRouter{c: c, storage: storage}
}
