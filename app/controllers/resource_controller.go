package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fleetward/fleetward/app/models"
	"github.com/fleetward/fleetward/app/repository"
	"github.com/fleetward/fleetward/internal/pkg/authz"
	"github.com/fleetward/fleetward/internal/pkg/entitlements"
	"github.com/fleetward/fleetward/internal/pkg/ownership"
	"github.com/fleetward/fleetward/internal/pkg/usercontext"
)

type recordPtr[T any] interface {
	*T
	models.Record
}

// temporal is implemented by records embedding models.TemporalFields.
type temporal interface {
	RefreshStatus(today time.Time) bool
}

// ResourceController serves list/get/create/update/delete for one owned
// record type. Every record-scoped path goes through the gateway and list
// paths use the gateway's filter.
type ResourceController[T any, P recordPtr[T]] struct {
	name    string
	repo    repository.OwnedRepository[T]
	gateway *authz.Gateway
	subs    *entitlements.Gate
	loc     *time.Location
	now     func() time.Time
}

func NewResourceController[T any, P recordPtr[T]](name string, repo repository.OwnedRepository[T], gateway *authz.Gateway, subs *entitlements.Gate, loc *time.Location) *ResourceController[T, P] {
	if loc == nil {
		loc = time.UTC
	}
	return &ResourceController[T, P]{name: name, repo: repo, gateway: gateway, subs: subs, loc: loc, now: time.Now}
}

// WithClock replaces the time source used to derive temporal status.
func (rc *ResourceController[T, P]) WithClock(now func() time.Time) *ResourceController[T, P] {
	rc.now = now
	return rc
}

func (rc *ResourceController[T, P]) HandleList(c *fiber.Ctx) error {
	ctx := c.UserContext()
	filter, err := rc.gateway.ListFilter(ctx, callerOf(c), usercontext.GetTarget(c))
	if err != nil {
		return respondError(c, err)
	}
	opts := repository.ListOptions{Offset: c.QueryInt("offset", 0), Limit: c.QueryInt("limit", repository.DefaultListLimit)}
	records, total, err := rc.repo.List(ctx, filter, opts)
	if err != nil {
		return respondError(c, err)
	}
	if records == nil {
		records = []T{}
	}
	return c.JSON(fiber.Map{"data": records, "total": total, "offset": opts.Offset, "limit": opts.Limit})
}

func (rc *ResourceController[T, P]) HandleGet(c *fiber.Ctx) error {
	record, err := rc.load(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(record)
}

func (rc *ResourceController[T, P]) HandleCreate(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := requireActiveSubscription(c, rc.subs); err != nil {
		return respondError(c, err)
	}
	caller := callerOf(c)
	effective, err := rc.gateway.Authorize(ctx, caller, usercontext.GetTarget(c), nil)
	if err != nil {
		return respondError(c, err)
	}

	record := P(new(T))
	if err := c.BodyParser(record); err != nil {
		return badRequest(c, "Invalid request body")
	}
	record.Assign(0, ownership.Stamp(caller.ID, effective))
	if err := rc.prepare(record); err != nil {
		return respondError(c, err)
	}
	if err := rc.repo.Create(ctx, (*T)(record)); err != nil {
		return respondError(c, err)
	}
	log.Infof("[API] User %d created %s %d for %d", caller.ID, rc.name, record.RecordID(), effective)
	return c.Status(fiber.StatusCreated).JSON(record)
}

func (rc *ResourceController[T, P]) HandleUpdate(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := requireActiveSubscription(c, rc.subs); err != nil {
		return respondError(c, err)
	}
	existing, err := rc.load(c)
	if err != nil {
		return respondError(c, err)
	}

	record := P(new(T))
	if err := c.BodyParser(record); err != nil {
		return badRequest(c, "Invalid request body")
	}
	record.Assign(existing.RecordID(), existing.OwnershipFields())
	if err := rc.prepare(record); err != nil {
		return respondError(c, err)
	}
	if err := rc.repo.Update(ctx, (*T)(record)); err != nil {
		return respondError(c, err)
	}
	saved, err := rc.repo.GetByID(ctx, record.RecordID())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(saved)
}

func (rc *ResourceController[T, P]) HandleDelete(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := requireActiveSubscription(c, rc.subs); err != nil {
		return respondError(c, err)
	}
	existing, err := rc.load(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := rc.repo.Delete(ctx, existing.RecordID()); err != nil {
		return respondError(c, err)
	}
	log.Infof("[API] User %d deleted %s %d", callerOf(c).ID, rc.name, existing.RecordID())
	return c.SendStatus(fiber.StatusNoContent)
}

// load fetches the record named by :id and authorizes the caller against it.
func (rc *ResourceController[T, P]) load(c *fiber.Ctx) (P, error) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, authz.ErrAccessDenied
	}
	ctx := c.UserContext()
	record, err := rc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := rc.gateway.Authorize(ctx, callerOf(c), usercontext.GetTarget(c), P(record)); err != nil {
		return nil, err
	}
	return P(record), nil
}

// prepare validates the record and, for temporal records, derives the
// stored status from its dates.
func (rc *ResourceController[T, P]) prepare(record P) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if t, ok := any(record).(temporal); ok {
		t.RefreshStatus(rc.now().In(rc.loc))
	}
	return nil
}
