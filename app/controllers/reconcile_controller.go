package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/fleetward/fleetward/internal/pkg/jobqueue"
)

// ReconcileController lets platform admins trigger and inspect reconciliation.
type ReconcileController struct {
	manager *jobqueue.Manager
}

func NewReconcileController(manager *jobqueue.Manager) *ReconcileController {
	return &ReconcileController{manager: manager}
}

// HandleRun runs a pass now through the same overlap guard as the schedule.
func (rc *ReconcileController) HandleRun(c *fiber.Ctx) error {
	summary, err := rc.manager.RunNow(c.UserContext())
	if errors.Is(err, jobqueue.ErrAlreadyRunning) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already_running", "message": err.Error()})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

// HandleLast returns the most recent run summary and the next scheduled run.
func (rc *ReconcileController) HandleLast(c *fiber.Ctx) error {
	last, err := rc.manager.Reconciler().LastSummary(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	response := fiber.Map{
		"last_run":  last,
		"running":   rc.manager.Reconciler().Running(),
		"scheduled": rc.manager.IsRunning(),
	}
	if rc.manager.IsRunning() {
		response["next_run"] = rc.manager.NextRun()
	}
	return c.JSON(response)
}
