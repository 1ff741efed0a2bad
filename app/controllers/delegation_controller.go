package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/fleetward/fleetward/app/models"
	"github.com/fleetward/fleetward/app/repository"
	"github.com/fleetward/fleetward/internal/pkg/delegation"
	"github.com/fleetward/fleetward/internal/pkg/metrics"
)

type joinRequest struct {
	ManagerID uint `json:"managerId" validate:"required"`
}

type statusRequest struct {
	Status models.DelegationStatus `json:"status" validate:"required,oneof=approved revoked leave_requested remove_requested"`
}

type capacityRequest struct {
	Capacity int `json:"capacity" validate:"required,min=1,max=1000"`
}

// DelegationController exposes the delegation roster to both parties and to
// platform admins.
type DelegationController struct {
	registry *delegation.Registry
	users    repository.UserRepository
	metrics  *metrics.Metrics
}

func NewDelegationController(registry *delegation.Registry, users repository.UserRepository, m *metrics.Metrics) *DelegationController {
	return &DelegationController{registry: registry, users: users, metrics: m}
}

// HandleGet returns the caller's roster for managers and the caller's own
// entry for standalone users. Admins pass ?managerId=.
func (dc *DelegationController) HandleGet(c *fiber.Ctx) error {
	ctx := c.UserContext()
	caller := callerOf(c)

	switch caller.Role {
	case models.RoleTransportManager:
		return dc.respondRoster(c, caller.ID)

	case models.RolePlatformAdmin:
		managerID := uint(c.QueryInt("managerId", 0))
		if managerID == 0 {
			return badRequest(c, "managerId is required")
		}
		return dc.respondRoster(c, managerID)

	case models.RoleStandaloneUser:
		managerID, ok, err := dc.registry.ManagerOf(ctx, caller.ID)
		if err != nil {
			return respondError(c, err)
		}
		if !ok {
			return c.JSON(fiber.Map{"manager_id": nil, "entry": nil})
		}
		roster, err := dc.registry.Roster(ctx, managerID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"manager_id": managerID, "entry": roster.Find(caller.ID)})
	}
	return notFound(c)
}

// HandleJoin records a standalone user's request to be managed by managerId.
func (dc *DelegationController) HandleJoin(c *fiber.Ctx) error {
	var req joinRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, err)
	}

	ctx := c.UserContext()
	manager, err := dc.users.GetByID(ctx, req.ManagerID)
	if err != nil {
		return respondError(c, err)
	}
	if !manager.IsManager() || !manager.IsActive() {
		return notFound(c)
	}

	entry, err := dc.registry.AddEntry(ctx, manager.ID, callerOf(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	dc.metrics.DelegationTransitioned(string(entry.Status))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"manager_id": manager.ID, "entry": entry})
}

// HandleStatus moves an entry along the state machine. Each party may only
// drive its own edges; platform admins may drive any valid edge.
func (dc *DelegationController) HandleStatus(c *fiber.Ctx) error {
	managerID, ok := paramID(c, "managerId")
	if !ok {
		return notFound(c)
	}
	clientID, ok := paramID(c, "clientId")
	if !ok {
		return notFound(c)
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, err)
	}

	ctx := c.UserContext()
	caller := callerOf(c)
	var (
		entry models.DelegationEntry
		err   error
	)
	switch {
	case caller.Role == models.RolePlatformAdmin:
		entry, err = dc.registry.Transition(ctx, managerID, clientID, req.Status)
	case caller.Role == models.RoleTransportManager && caller.ID == managerID:
		entry, err = dc.registry.TransitionAs(ctx, delegation.SideManager, managerID, clientID, req.Status)
	case caller.Role == models.RoleStandaloneUser && caller.ID == clientID:
		entry, err = dc.registry.TransitionAs(ctx, delegation.SideClient, managerID, clientID, req.Status)
	default:
		return notFound(c)
	}
	if err != nil {
		return respondError(c, err)
	}
	dc.metrics.DelegationTransitioned(string(entry.Status))
	return c.JSON(fiber.Map{"manager_id": managerID, "entry": entry})
}

// HandleSetCapacity changes a manager's roster capacity (platform admin only).
func (dc *DelegationController) HandleSetCapacity(c *fiber.Ctx) error {
	managerID, ok := paramID(c, "managerId")
	if !ok {
		return notFound(c)
	}
	var req capacityRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return respondError(c, err)
	}

	ctx := c.UserContext()
	manager, err := dc.users.GetByID(ctx, managerID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !manager.IsManager()) {
		return notFound(c)
	}
	if err != nil {
		return respondError(c, err)
	}

	roster, err := dc.registry.SetCapacity(ctx, managerID, req.Capacity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rosterView(roster))
}

func (dc *DelegationController) respondRoster(c *fiber.Ctx, managerID uint) error {
	roster, err := dc.registry.Roster(c.UserContext(), managerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rosterView(roster))
}

func rosterView(r *models.DelegationRoster) fiber.Map {
	entries := []models.DelegationEntry(r.Entries)
	if entries == nil {
		entries = []models.DelegationEntry{}
	}
	return fiber.Map{
		"manager_id": r.ManagerID,
		"capacity":   r.Capacity,
		"active":     r.ActiveCount(),
		"entries":    entries,
	}
}
