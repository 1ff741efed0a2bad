package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/fleetward/fleetward/app/repository"
	"github.com/fleetward/fleetward/internal/pkg/delegation"
	"github.com/fleetward/fleetward/internal/pkg/entitlements"
	"github.com/fleetward/fleetward/internal/pkg/security"
)

// AccessTokenTTL is the lifetime of tokens issued by HandleToken.
const AccessTokenTTL = time.Hour

type tokenRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AccountController struct {
	users     repository.UserRepository
	settings  repository.UserSettingsRepository
	gate      *entitlements.Gate
	registry  *delegation.Registry
	jwtSecret string
	now       func() time.Time
}

func NewAccountController(users repository.UserRepository, settings repository.UserSettingsRepository, gate *entitlements.Gate, registry *delegation.Registry, jwtSecret string) *AccountController {
	return &AccountController{users: users, settings: settings, gate: gate, registry: registry, jwtSecret: jwtSecret, now: time.Now}
}

// HandleGetAccount returns account information for the authenticated user.
func (ac *AccountController) HandleGetAccount(c *fiber.Ctx) error {
	ctx := c.UserContext()
	caller := callerOf(c)

	account, err := ac.users.GetByID(ctx, caller.ID)
	if err != nil {
		return respondError(c, err)
	}
	settings, err := ac.settings.GetOrCreate(ctx, caller.ID)
	if err != nil {
		return respondError(c, err)
	}
	remaining, err := ac.gate.Remaining(ctx, caller.ID)
	if err != nil {
		return respondError(c, err)
	}

	response := fiber.Map{
		"id":            account.ID,
		"name":          account.Name,
		"email":         account.Email,
		"role":          account.Role,
		"status":        account.Status,
		"company_name":  account.CompanyName,
		"last_login_at": formatTimePtr(account.LastLoginAt),
		"created_at":    account.CreatedAt.UTC().Format(time.RFC3339),
		"subscription":  remaining,
		"api_key": fiber.Map{
			"active":       settings.HasActiveAPIKey(),
			"prefix":       settings.APIKeyPrefix,
			"created_at":   formatTimePtr(settings.APIKeyCreatedAt),
			"last_used_at": formatTimePtr(settings.APIKeyLastUsedAt),
		},
	}

	if account.IsManager() {
		roster, err := ac.registry.Roster(ctx, account.ID)
		if err != nil {
			return respondError(c, err)
		}
		response["roster"] = fiber.Map{"capacity": roster.Capacity, "active": roster.ActiveCount()}
	}
	return c.JSON(response)
}

// HandleIssueAPIKey replaces any existing key. The raw key is only returned here.
func (ac *AccountController) HandleIssueAPIKey(c *fiber.Ctx) error {
	ctx := c.UserContext()
	caller := callerOf(c)
	settings, err := ac.settings.GetOrCreate(ctx, caller.ID)
	if err != nil {
		return respondError(c, err)
	}
	raw, err := settings.IssueAPIKey(ac.now())
	if err != nil {
		return respondError(c, err)
	}
	if err := ac.settings.Save(ctx, settings); err != nil {
		return respondError(c, err)
	}
	log.Infof("[Account] User %d issued a new API key (%s)", caller.ID, settings.APIKeyPrefix)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"api_key":    raw,
		"prefix":     settings.APIKeyPrefix,
		"created_at": formatTimePtr(settings.APIKeyCreatedAt),
	})
}

func (ac *AccountController) HandleRevokeAPIKey(c *fiber.Ctx) error {
	ctx := c.UserContext()
	caller := callerOf(c)
	settings, err := ac.settings.GetOrCreate(ctx, caller.ID)
	if err != nil {
		return respondError(c, err)
	}
	if !settings.HasActiveAPIKey() {
		return c.SendStatus(fiber.StatusNoContent)
	}
	settings.RevokeAPIKey(ac.now())
	if err := ac.settings.Save(ctx, settings); err != nil {
		return respondError(c, err)
	}
	log.Infof("[Account] User %d revoked their API key", caller.ID)
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleToken exchanges email and password for a bearer access token.
func (ac *AccountController) HandleToken(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, err)
	}

	ctx := c.UserContext()
	user, err := ac.users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, err)
	}
	if user == nil || !user.CheckPassword(req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid email or password"})
	}
	if !user.IsActive() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "User inactive"})
	}

	now := ac.now()
	token, err := security.IssueAccessToken(ac.jwtSecret, user.ID, string(user.Role), AccessTokenTTL, now)
	if err != nil {
		return respondError(c, err)
	}
	if err := ac.users.TouchLogin(ctx, user.ID, now); err != nil {
		log.Warnf("[Account] Failed to record login for user %d: %v", user.ID, err)
	}
	return c.JSON(fiber.Map{
		"access_token": token.Token,
		"token_type":   "Bearer",
		"expires_at":   token.ExpiresAt.Format(time.RFC3339),
	})
}
