package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fleetward/fleetward/app/models"
	"github.com/fleetward/fleetward/internal/pkg/usercontext"
)

// RequireAuth rejects requests that passed no identity middleware.
func RequireAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}

// RequireRole allows only callers holding one of roles.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uc := usercontext.GetUserContext(c)
		if !uc.IsLoggedIn {
			return RequireAuth(c)
		}
		for _, r := range roles {
			if uc.Role == r {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "insufficient role",
		})
	}
}

// RequireAdmin ensures a platform admin.
func RequireAdmin(c *fiber.Ctx) error {
	return RequireRole(models.RolePlatformAdmin)(c)
}
