package delegation

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fleetward/fleetward/app/models"
)

const maxSaveAttempts = 5

// Registry owns every read and write of delegation rosters. All mutations
// load the roster, apply the change to a copy and write it back with a
// version check, so a failed operation never leaves a partial update.
type Registry struct {
	store           Store
	defaultCapacity int
	now             func() time.Time
}

// NewRegistry creates a registry; a non-positive capacity falls back to the model default.
func NewRegistry(store Store, defaultCapacity int) *Registry {
	if defaultCapacity <= 0 {
		defaultCapacity = models.DefaultRosterCapacity
	}
	return &Registry{store: store, defaultCapacity: defaultCapacity, now: time.Now}
}

// WithClock replaces the time source used for entry timestamps.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// IsApprovedDelegate reports whether clientID's entry in managerID's roster is
// exactly approved. Pending and requested states never grant access.
func (r *Registry) IsApprovedDelegate(ctx context.Context, managerID, clientID uint) (bool, error) {
	roster, err := r.store.Load(ctx, managerID)
	if err != nil || roster == nil {
		return false, err
	}
	e := roster.Find(clientID)
	return e != nil && e.Status == models.DelegationApproved, nil
}

// AddEntry records a new pending request from clientID to managerID.
func (r *Registry) AddEntry(ctx context.Context, managerID, clientID uint) (models.DelegationEntry, error) {
	if managerID == clientID {
		return models.DelegationEntry{}, ErrSelfDelegation
	}
	var added models.DelegationEntry
	err := r.mutate(ctx, managerID, func(roster *models.DelegationRoster) (LinkChange, error) {
		existing := roster.Find(clientID)
		if existing != nil && existing.Status != models.DelegationRevoked {
			return LinkChange{}, ErrAlreadyPresent
		}
		if roster.ActiveCount() >= roster.Capacity {
			return LinkChange{}, ErrCapacityExceeded
		}
		if other, ok, err := r.store.ManagerOf(ctx, clientID); err != nil {
			return LinkChange{}, err
		} else if ok && other != managerID {
			return LinkChange{}, ErrAlreadyDelegated
		}

		added = models.DelegationEntry{
			ClientID:    clientID,
			Status:      models.DelegationPending,
			RequestedAt: r.now().UTC(),
		}
		if existing != nil {
			// A revoked entry is replaced so the client appears once per roster.
			*existing = added
		} else {
			roster.Entries = append(roster.Entries, added)
		}
		return LinkChange{Claim: clientID}, nil
	})
	if err != nil {
		return models.DelegationEntry{}, err
	}
	log.Infof("[Delegation] Client %d requested delegation to manager %d", clientID, managerID)
	return added, nil
}

// Transition moves clientID's entry in managerID's roster to status to,
// whichever side asks.
func (r *Registry) Transition(ctx context.Context, managerID, clientID uint, to models.DelegationStatus) (models.DelegationEntry, error) {
	return r.transition(ctx, "", managerID, clientID, to)
}

// TransitionAs is Transition restricted to the edges side may drive. The
// side check runs against the same roster version that is written.
func (r *Registry) TransitionAs(ctx context.Context, side Side, managerID, clientID uint, to models.DelegationStatus) (models.DelegationEntry, error) {
	return r.transition(ctx, side, managerID, clientID, to)
}

func (r *Registry) transition(ctx context.Context, side Side, managerID, clientID uint, to models.DelegationStatus) (models.DelegationEntry, error) {
	var updated models.DelegationEntry
	err := r.mutate(ctx, managerID, func(roster *models.DelegationRoster) (LinkChange, error) {
		e := roster.Find(clientID)
		if e == nil {
			return LinkChange{}, ErrNotFound
		}
		next, err := Transition(e.Status, to)
		if err != nil {
			return LinkChange{}, err
		}
		if side != "" && !MayApply(side, e.Status, to) {
			return LinkChange{}, ErrSideNotAllowed
		}
		now := r.now().UTC()
		e.Status = next
		var link LinkChange
		switch next {
		case models.DelegationApproved:
			e.ApprovedAt = &now
		case models.DelegationRevoked:
			e.RevokedAt = &now
			link.Release = clientID
		}
		updated = *e
		return link, nil
	})
	if err != nil {
		return models.DelegationEntry{}, err
	}
	log.Infof("[Delegation] Manager %d client %d is now %s", managerID, clientID, updated.Status)
	return updated, nil
}

// SetCapacity changes the roster's capacity. It never evicts entries.
func (r *Registry) SetCapacity(ctx context.Context, managerID uint, capacity int) (*models.DelegationRoster, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	var saved *models.DelegationRoster
	err := r.mutate(ctx, managerID, func(roster *models.DelegationRoster) (LinkChange, error) {
		if capacity < roster.ActiveCount() {
			return LinkChange{}, ErrCapacityBelowActive
		}
		roster.Capacity = capacity
		saved = roster
		return LinkChange{}, nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Delegation] Capacity for manager %d set to %d", managerID, capacity)
	return saved, nil
}

// Roster returns managerID's roster, or an empty roster with the default
// capacity when none has been written yet.
func (r *Registry) Roster(ctx context.Context, managerID uint) (*models.DelegationRoster, error) {
	roster, err := r.store.Load(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if roster == nil {
		return r.emptyRoster(managerID), nil
	}
	return roster, nil
}

// ManagerOf returns the manager currently holding a non-revoked entry for clientID.
func (r *Registry) ManagerOf(ctx context.Context, clientID uint) (uint, bool, error) {
	return r.store.ManagerOf(ctx, clientID)
}

func (r *Registry) emptyRoster(managerID uint) *models.DelegationRoster {
	return &models.DelegationRoster{ManagerID: managerID, Capacity: r.defaultCapacity}
}

func (r *Registry) mutate(ctx context.Context, managerID uint, apply func(*models.DelegationRoster) (LinkChange, error)) error {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		loaded, err := r.store.Load(ctx, managerID)
		if err != nil {
			return err
		}
		if loaded == nil {
			loaded = r.emptyRoster(managerID)
		}
		expected := loaded.Version
		working := loaded.Clone()

		link, err := apply(working)
		if err != nil {
			return err
		}
		err = r.store.Save(ctx, working, expected, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConcurrentUpdate) {
			return err
		}
		log.Debugf("[Delegation] Roster for manager %d changed concurrently (attempt %d)", managerID, attempt)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	log.Warnf("[Delegation] Giving up on roster update for manager %d after %d attempts", managerID, maxSaveAttempts)
	return ErrConcurrentUpdate
}
