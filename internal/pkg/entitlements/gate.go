package entitlements

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/fleetward/fleetward/app/models"
)

var (
	ErrSubscriptionExpired = errors.New("subscription expired, renew to continue")
	ErrAlreadySubscribed   = errors.New("account already has a current subscription")
)

// SubscriptionReader returns the most recently created subscription whose
// status is active or trial, or nil when there is none.
type SubscriptionReader interface {
	LatestCurrent(ctx context.Context, userID uint) (*models.Subscription, error)
}

// Remaining is the validity of a user's current subscription.
type Remaining struct {
	DaysRemaining int                  `json:"days_remaining"`
	Expired       bool                 `json:"expired"`
	IsLifetime    bool                 `json:"is_lifetime"`
	Record        *models.Subscription `json:"record,omitempty"`
}

// Gate answers subscription validity questions for a user.
type Gate struct {
	subs SubscriptionReader
	now  func() time.Time
}

// NewGate creates a gate reading from subs.
func NewGate(subs SubscriptionReader) *Gate {
	return &Gate{subs: subs, now: time.Now}
}

// WithClock replaces the time source.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Remaining computes validity from the latest current record. Days are the
// ceiling of the remaining duration; zero or less counts as expired.
func (g *Gate) Remaining(ctx context.Context, userID uint) (Remaining, error) {
	rec, err := g.subs.LatestCurrent(ctx, userID)
	if err != nil {
		return Remaining{}, err
	}
	if rec == nil {
		return Remaining{Expired: true}, nil
	}
	if rec.IsLifetime {
		return Remaining{IsLifetime: true, Record: rec}, nil
	}
	if rec.EndDate == nil {
		// A finite record without an end date grants nothing.
		return Remaining{Expired: true, Record: rec}, nil
	}
	days := DaysRemaining(*rec.EndDate, g.now())
	return Remaining{DaysRemaining: days, Expired: days <= 0, Record: rec}, nil
}

// RequireActive blocks mutations for users without a valid subscription.
func (g *Gate) RequireActive(ctx context.Context, userID uint) error {
	r, err := g.Remaining(ctx, userID)
	if err != nil {
		return err
	}
	if r.Expired {
		return ErrSubscriptionExpired
	}
	return nil
}

// RequireNoCurrent blocks starting a trial or purchase while one is still valid.
func (g *Gate) RequireNoCurrent(ctx context.Context, userID uint) error {
	r, err := g.Remaining(ctx, userID)
	if err != nil {
		return err
	}
	if !r.Expired {
		return ErrAlreadySubscribed
	}
	return nil
}

// DaysRemaining returns ceil((end - now) / 24h) at millisecond precision.
// Past end dates give zero or a negative count.
func DaysRemaining(end, now time.Time) int {
	ms := end.Sub(now).Milliseconds()
	return int(math.Ceil(float64(ms) / float64((24 * time.Hour).Milliseconds())))
}
