package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/fleetward/fleetward/app/models"
	"github.com/fleetward/fleetward/internal/pkg/authz"
	"github.com/fleetward/fleetward/internal/pkg/delegation"
	"github.com/fleetward/fleetward/internal/pkg/entitlements"
	"github.com/fleetward/fleetward/internal/pkg/usercontext"
)

const notFoundMessage = "Resource not found or access denied"

var validate = validator.New()

// callerOf builds the authorization caller from the request's user context.
func callerOf(c *fiber.Ctx) authz.Caller {
	uc := usercontext.GetUserContext(c)
	return authz.Caller{ID: uc.UserID, Role: uc.Role}
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": notFoundMessage})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": message})
}

// respondError maps domain failures to responses. Authorization failures and
// missing records share one response so callers cannot enumerate records.
func respondError(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	switch {
	case authz.IsDenied(err), errors.Is(err, gorm.ErrRecordNotFound):
		return notFound(c)
	case errors.Is(err, entitlements.ErrSubscriptionExpired):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "subscription_expired", "message": err.Error()})
	case errors.Is(err, entitlements.ErrAlreadySubscribed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already_subscribed", "message": err.Error()})
	case delegation.IsUserFacing(err):
		return c.Status(delegationStatus(err)).JSON(fiber.Map{"error": "delegation_rejected", "message": err.Error()})
	case errors.As(err, &verrs):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": verrs.Error()})
	}
	log.Errorf("[API] %s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Request failed"})
}

func delegationStatus(err error) int {
	switch {
	case errors.Is(err, delegation.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, delegation.ErrSideNotAllowed):
		return fiber.StatusForbidden
	case errors.Is(err, delegation.ErrCapacityExceeded),
		errors.Is(err, delegation.ErrAlreadyPresent),
		errors.Is(err, delegation.ErrAlreadyDelegated),
		errors.Is(err, delegation.ErrConcurrentUpdate):
		return fiber.StatusConflict
	}
	return fiber.StatusUnprocessableEntity
}

// requireActiveSubscription gates writes on the caller's own subscription.
// Platform admins are not billed.
func requireActiveSubscription(c *fiber.Ctx, gate *entitlements.Gate) error {
	caller := callerOf(c)
	if caller.Role == models.RolePlatformAdmin {
		return nil
	}
	return gate.RequireActive(c.UserContext(), caller.ID)
}

func paramID(c *fiber.Ctx, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
