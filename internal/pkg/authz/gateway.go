package authz

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fleetward/fleetward/app/models"
	"github.com/fleetward/fleetward/internal/pkg/metrics"
	"github.com/fleetward/fleetward/internal/pkg/ownership"
)

// Caller is the authenticated identity behind a request.
type Caller struct {
	ID   uint
	Role models.Role
}

// DelegateChecker is the part of the delegation registry the gateway needs.
type DelegateChecker interface {
	IsApprovedDelegate(ctx context.Context, managerID, clientID uint) (bool, error)
}

// Gateway resolves which account an actor may act on and whether the action is allowed.
type Gateway struct {
	delegates DelegateChecker
	metrics   *metrics.Metrics
}

// NewGateway creates a gateway. m may be nil.
func NewGateway(delegates DelegateChecker, m *metrics.Metrics) *Gateway {
	return &Gateway{delegates: delegates, metrics: m}
}

// Authorize resolves the identity the caller acts as. target is the optional
// standalone id the caller wants to act for; resource, when given, must be
// owned by that identity. Platform admins act as themselves or as any target
// and never reach the ownership check.
func (g *Gateway) Authorize(ctx context.Context, caller Caller, target *uint, resource models.Owned) (uint, error) {
	effective, err := g.effectiveIdentity(ctx, caller, target)
	if err != nil {
		return 0, g.deny(caller, target, err)
	}
	if caller.Role == models.RolePlatformAdmin || resource == nil {
		return effective, nil
	}
	if !ownership.Resolve(resource, effective) {
		return 0, g.deny(caller, target, ErrAccessDenied)
	}
	return effective, nil
}

// ListFilter returns the storage filter for list paths. It applies the same
// predicate as Authorize does for single records.
func (g *Gateway) ListFilter(ctx context.Context, caller Caller, target *uint) (ownership.Filter, error) {
	effective, err := g.Authorize(ctx, caller, target, nil)
	if err != nil {
		return ownership.Filter{}, err
	}
	if caller.Role == models.RolePlatformAdmin && target == nil {
		return ownership.Filter{Unrestricted: true}, nil
	}
	return ownership.For(effective), nil
}

func (g *Gateway) effectiveIdentity(ctx context.Context, caller Caller, target *uint) (uint, error) {
	switch caller.Role {
	case models.RoleStandaloneUser:
		if target != nil {
			return 0, ErrTargetNotAllowed
		}
		return caller.ID, nil

	case models.RoleTransportManager:
		if target == nil {
			return 0, ErrTargetRequired
		}
		ok, err := g.delegates.IsApprovedDelegate(ctx, caller.ID, *target)
		if err != nil {
			return 0, fmt.Errorf("checking delegation %d->%d: %w", caller.ID, *target, err)
		}
		if !ok {
			return 0, ErrDelegateNotApproved
		}
		return *target, nil

	case models.RolePlatformAdmin:
		if target != nil {
			return *target, nil
		}
		return caller.ID, nil
	}
	return 0, ErrRoleNotPermitted
}

func (g *Gateway) deny(caller Caller, target *uint, err error) error {
	r := reason(err)
	if r == "" {
		log.Errorf("[Authz] Authorization for user %d failed: %v", caller.ID, err)
		return err
	}
	t := "none"
	if target != nil {
		t = fmt.Sprint(*target)
	}
	log.Infof("[Authz] Denied user %d (%s) target=%s: %s", caller.ID, caller.Role, t, r)
	g.metrics.AuthzDenied(r)
	return err
}
