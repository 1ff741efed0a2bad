package delegation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fleetward/fleetward/app/models"
)

const manager = uint(100)

func newTestRegistry() *Registry {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return NewRegistry(NewMemoryStore(), 4).WithClock(func() time.Time { return fixed })
}

func approve(t *testing.T, r *Registry, managerID, clientID uint) {
	t.Helper()
	_, err := r.AddEntry(context.Background(), managerID, clientID)
	require.NoError(t, err)
	_, err = r.Transition(context.Background(), managerID, clientID, models.DelegationApproved)
	require.NoError(t, err)
}

func TestCapacityIsEnforced(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	for c := uint(1); c <= 4; c++ {
		approve(t, r, manager, c)
	}
	before, err := r.Roster(ctx, manager)
	require.NoError(t, err)

	_, err = r.AddEntry(ctx, manager, 5)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	after, err := r.Roster(ctx, manager)
	require.NoError(t, err)
	assert.Equal(t, before.Entries, after.Entries)
	assert.Equal(t, before.Version, after.Version)
}

func TestPendingCountsAgainstCapacity(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	for c := uint(1); c <= 4; c++ {
		_, err := r.AddEntry(ctx, manager, c)
		require.NoError(t, err)
	}
	_, err := r.AddEntry(ctx, manager, 5)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = r.Transition(ctx, manager, 1, models.DelegationRevoked)
	require.NoError(t, err)
	_, err = r.AddEntry(ctx, manager, 5)
	assert.NoError(t, err)
}

func TestRequestedStatesDoNotOccupy(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	for c := uint(1); c <= 4; c++ {
		approve(t, r, manager, c)
	}
	_, err := r.Transition(ctx, manager, 1, models.DelegationLeaveRequested)
	require.NoError(t, err)

	_, err = r.AddEntry(ctx, manager, 5)
	assert.NoError(t, err)
}

func TestAlreadyPresent(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	_, err := r.AddEntry(ctx, manager, 1)
	require.NoError(t, err)

	_, err = r.AddEntry(ctx, manager, 1)
	assert.ErrorIs(t, err, ErrAlreadyPresent)

	roster, err := r.Roster(ctx, manager)
	require.NoError(t, err)
	assert.Len(t, roster.Entries, 1)
}

func TestReAddAfterRevokeReplacesEntry(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	_, err := r.AddEntry(ctx, manager, 1)
	require.NoError(t, err)
	_, err = r.Transition(ctx, manager, 1, models.DelegationRevoked)
	require.NoError(t, err)

	e, err := r.AddEntry(ctx, manager, 1)
	require.NoError(t, err)
	assert.Equal(t, models.DelegationPending, e.Status)

	roster, err := r.Roster(ctx, manager)
	require.NoError(t, err)
	require.Len(t, roster.Entries, 1)
	assert.Nil(t, roster.Entries[0].RevokedAt)
}

func TestClientBelongsToOneManager(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	_, err := r.AddEntry(ctx, manager, 1)
	require.NoError(t, err)

	_, err = r.AddEntry(ctx, 200, 1)
	assert.ErrorIs(t, err, ErrAlreadyDelegated)

	m, ok, err := r.ManagerOf(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, manager, m)

	_, err = r.Transition(ctx, manager, 1, models.DelegationRevoked)
	require.NoError(t, err)
	_, ok, err = r.ManagerOf(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.AddEntry(ctx, 200, 1)
	assert.NoError(t, err)
}

func TestSelfDelegationRejected(t *testing.T) {
	_, err := newTestRegistry().AddEntry(context.Background(), manager, manager)
	assert.ErrorIs(t, err, ErrSelfDelegation)
}

func TestIsApprovedDelegateOnlyForApproved(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	ok, err := r.IsApprovedDelegate(ctx, manager, 1)
	require.NoError(t, err)
	assert.False(t, ok, "unknown roster")

	_, err = r.AddEntry(ctx, manager, 1)
	require.NoError(t, err)
	ok, _ = r.IsApprovedDelegate(ctx, manager, 1)
	assert.False(t, ok, "pending")

	_, err = r.Transition(ctx, manager, 1, models.DelegationApproved)
	require.NoError(t, err)
	ok, _ = r.IsApprovedDelegate(ctx, manager, 1)
	assert.True(t, ok, "approved")

	_, err = r.Transition(ctx, manager, 1, models.DelegationRemoveRequested)
	require.NoError(t, err)
	ok, _ = r.IsApprovedDelegate(ctx, manager, 1)
	assert.False(t, ok, "remove_requested")
}

func TestTransitionTimestampsAndErrors(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	_, err := r.Transition(ctx, manager, 1, models.DelegationApproved)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.AddEntry(ctx, manager, 1)
	require.NoError(t, err)
	e, err := r.Transition(ctx, manager, 1, models.DelegationApproved)
	require.NoError(t, err)
	require.NotNil(t, e.ApprovedAt)

	_, err = r.Transition(ctx, manager, 1, models.DelegationRevoked)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = r.Transition(ctx, manager, 1, models.DelegationLeaveRequested)
	require.NoError(t, err)
	e, err = r.Transition(ctx, manager, 1, models.DelegationRevoked)
	require.NoError(t, err)
	require.NotNil(t, e.RevokedAt)

	_, err = r.Transition(ctx, manager, 1, models.DelegationApproved)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSetCapacity(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	approve(t, r, manager, 1)
	approve(t, r, manager, 2)

	_, err := r.SetCapacity(ctx, manager, 0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = r.SetCapacity(ctx, manager, 1)
	assert.ErrorIs(t, err, ErrCapacityBelowActive)

	roster, err := r.SetCapacity(ctx, manager, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, roster.Capacity)
	assert.Len(t, roster.Entries, 2)

	_, err = r.AddEntry(ctx, manager, 3)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestRosterDefaults(t *testing.T) {
	roster, err := newTestRegistry().Roster(context.Background(), 77)
	require.NoError(t, err)
	assert.Equal(t, 4, roster.Capacity)
	assert.Empty(t, roster.Entries)
}

func TestConcurrentAddsNeverExceedCapacity(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	var wg sync.WaitGroup
	for c := uint(1); c <= 20; c++ {
		wg.Add(1)
		go func(clientID uint) {
			defer wg.Done()
			_, err := r.AddEntry(ctx, manager, clientID)
			if err != nil {
				assert.True(t, errors.Is(err, ErrCapacityExceeded) || errors.Is(err, ErrConcurrentUpdate), err.Error())
			}
		}(c)
	}
	wg.Wait()

	roster, err := r.Roster(ctx, manager)
	require.NoError(t, err)
	assert.LessOrEqual(t, roster.ActiveCount(), roster.Capacity)
	assert.LessOrEqual(t, len(roster.Entries), 4)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.DelegationRoster{}, &models.DelegationLink{}))
	return db
}

func TestGormStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(NewGormStore(openTestDB(t)), 0)

	approve(t, r, manager, 1)
	_, err := r.AddEntry(ctx, manager, 2)
	require.NoError(t, err)

	roster, err := r.Roster(ctx, manager)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRosterCapacity, roster.Capacity)
	require.Len(t, roster.Entries, 2)
	assert.Equal(t, models.DelegationApproved, roster.Find(1).Status)
	assert.Equal(t, models.DelegationPending, roster.Find(2).Status)
	assert.Equal(t, uint(3), roster.Version)

	_, err = r.AddEntry(ctx, 200, 2)
	assert.ErrorIs(t, err, ErrAlreadyDelegated)
}

func TestGormStoreRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(openTestDB(t))
	r := NewRegistry(store, 4)
	_, err := r.AddEntry(ctx, manager, 1)
	require.NoError(t, err)

	stale, err := store.Load(ctx, manager)
	require.NoError(t, err)
	_, err = r.Transition(ctx, manager, 1, models.DelegationApproved)
	require.NoError(t, err)

	stale.Entries[0].Status = models.DelegationRevoked
	err = store.Save(ctx, stale, stale.Version, LinkChange{})
	assert.ErrorIs(t, err, ErrConcurrentUpdate)

	current, err := store.Load(ctx, manager)
	require.NoError(t, err)
	assert.Equal(t, models.DelegationApproved, current.Find(1).Status)
}

func TestTransitionAsEnforcesSide(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()
	_, err := r.AddEntry(ctx, manager, 1)
	require.NoError(t, err)

	_, err = r.TransitionAs(ctx, SideClient, manager, 1, models.DelegationApproved)
	assert.ErrorIs(t, err, ErrSideNotAllowed)

	e, err := r.TransitionAs(ctx, SideManager, manager, 1, models.DelegationApproved)
	require.NoError(t, err)
	assert.Equal(t, models.DelegationApproved, e.Status)

	_, err = r.TransitionAs(ctx, SideManager, manager, 1, models.DelegationLeaveRequested)
	assert.ErrorIs(t, err, ErrSideNotAllowed)

	_, err = r.TransitionAs(ctx, SideClient, manager, 1, models.DelegationPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = r.TransitionAs(ctx, SideClient, manager, 1, models.DelegationLeaveRequested)
	require.NoError(t, err)
	e, err = r.TransitionAs(ctx, SideManager, manager, 1, models.DelegationRevoked)
	require.NoError(t, err)
	assert.Equal(t, models.DelegationRevoked, e.Status)
}
