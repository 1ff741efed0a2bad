package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/fleetward/fleetward/app/models"
	"github.com/fleetward/fleetward/app/repository"
	"github.com/fleetward/fleetward/internal/pkg/billing"
	"github.com/fleetward/fleetward/internal/pkg/entitlements"
)

// SignatureHeader carries the webhook HMAC, "sha256=<hex>".
const SignatureHeader = "X-Signature"

type paymentRequest struct {
	Plan       string `json:"plan" validate:"omitempty,oneof=standard fleet"`
	PeriodDays int    `json:"periodDays" validate:"required,min=1,max=3660"`
	Reference  string `json:"reference" validate:"max=191"`
}

type SubscriptionController struct {
	service *billing.Service
	gate    *entitlements.Gate
	users   repository.UserRepository
}

func NewSubscriptionController(service *billing.Service, gate *entitlements.Gate, users repository.UserRepository) *SubscriptionController {
	return &SubscriptionController{service: service, gate: gate, users: users}
}

// HandleGet reports the validity of the caller's current subscription.
func (sc *SubscriptionController) HandleGet(c *fiber.Ctx) error {
	remaining, err := sc.gate.Remaining(c.UserContext(), callerOf(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(remaining)
}

func (sc *SubscriptionController) HandleHistory(c *fiber.Ctx) error {
	records, err := sc.service.History(c.UserContext(), callerOf(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	if records == nil {
		records = []models.Subscription{}
	}
	return c.JSON(fiber.Map{"data": records})
}

// HandleStartTrial is admitted only for accounts without a current subscription.
func (sc *SubscriptionController) HandleStartTrial(c *fiber.Ctx) error {
	sub, err := sc.service.StartTrial(c.UserContext(), callerOf(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

// HandleAdminPayment records a manual payment for :userId.
func (sc *SubscriptionController) HandleAdminPayment(c *fiber.Ctx) error {
	userID, err := sc.targetUser(c)
	if err != nil {
		return respondError(c, err)
	}
	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, err)
	}
	sub, err := sc.service.RecordPayment(c.UserContext(), billing.PaymentInput{
		UserID:     userID,
		Plan:       req.Plan,
		PeriodDays: req.PeriodDays,
		Source:     billing.SourceManual,
		Reference:  req.Reference,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

func (sc *SubscriptionController) HandleAdminLifetime(c *fiber.Ctx) error {
	userID, err := sc.targetUser(c)
	if err != nil {
		return respondError(c, err)
	}
	sub, err := sc.service.GrantLifetime(c.UserContext(), userID, billing.SourceManual, "")
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

func (sc *SubscriptionController) HandleAdminCancel(c *fiber.Ctx) error {
	userID, err := sc.targetUser(c)
	if err != nil {
		return respondError(c, err)
	}
	if _, err := sc.service.Cancel(c.UserContext(), userID, billing.SourceManual, ""); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleWebhook receives provider notifications. It is unauthenticated; the
// body signature is the credential.
func (sc *SubscriptionController) HandleWebhook(c *fiber.Ctx) error {
	result, err := sc.service.HandleWebhook(c.UserContext(), c.Params("source"), c.Body(), c.Get(SignatureHeader))
	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		log.Warnf("[Billing] Rejected webhook from %s: bad signature", c.Params("source"))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid signature"})
	case errors.Is(err, billing.ErrInvalidPayload):
		return badRequest(c, err.Error())
	case err != nil:
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (sc *SubscriptionController) targetUser(c *fiber.Ctx) (uint, error) {
	id, ok := paramID(c, "userId")
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	user, err := sc.users.GetByID(c.UserContext(), id)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}
