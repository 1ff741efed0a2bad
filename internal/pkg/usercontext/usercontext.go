package usercontext

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fleetward/fleetward/app/models"
)

// UserContext represents the authenticated caller of a request
type UserContext struct {
	UserID     uint        `json:"user_id"`
	Username   string      `json:"username"`
	Role       models.Role `json:"role"`
	IsLoggedIn bool        `json:"is_logged_in"`
	IsAdmin    bool        `json:"is_admin"`
	AuthMethod string      `json:"auth_method"`
	// TargetStandAloneID is the optional standalone account the caller wants
	// to act for, parsed from the standAloneId query parameter.
	TargetStandAloneID *uint `json:"target_stand_alone_id,omitempty"`
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{}
}

// Set stores uc on the request.
func Set(c *fiber.Ctx, uc UserContext) {
	c.Locals(KeyUserContext, uc)
	c.Locals(KeyUserID, uc.UserID)
	c.Locals(KeyRole, string(uc.Role))
	c.Locals(KeyAuthMethod, uc.AuthMethod)
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is a platform admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}

func GetRole(c *fiber.Ctx) models.Role {
	return GetUserContext(c).Role
}

// GetTarget returns the requested standalone id, or nil when none was given.
func GetTarget(c *fiber.Ctx) *uint {
	return GetUserContext(c).TargetStandAloneID
}
