package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fleetward/fleetward/app/models"
	"github.com/fleetward/fleetward/internal/pkg/entitlements"
)

const testSecret = "whsec_test"

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService(t *testing.T) (*Service, *entitlements.Gate, *clock) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Subscription{}, &models.BillingWebhookEvent{}))

	c := &clock{t: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
	repo := NewRepository(db)
	gate := entitlements.NewGate(repo).WithClock(c.now)
	return NewService(repo, gate, 14, testSecret).WithClock(c.now), gate, c
}

func TestStartTrialOnce(t *testing.T) {
	ctx := context.Background()
	svc, gate, _ := newTestService(t)

	sub, err := svc.StartTrial(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusTrial, sub.Status)

	r, err := gate.Remaining(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 14, r.DaysRemaining)
	assert.False(t, r.Expired)

	_, err = svc.StartTrial(ctx, 7)
	assert.ErrorIs(t, err, entitlements.ErrAlreadySubscribed)
}

func TestTrialAllowedAfterExpiry(t *testing.T) {
	ctx := context.Background()
	svc, gate, c := newTestService(t)

	_, err := svc.StartTrial(ctx, 7)
	require.NoError(t, err)

	c.t = c.t.AddDate(0, 0, 14)
	assert.ErrorIs(t, gate.RequireActive(ctx, 7), entitlements.ErrSubscriptionExpired)
	_, err = svc.StartTrial(ctx, 7)
	assert.NoError(t, err)
}

func TestRecordPaymentBlockedWhileValid(t *testing.T) {
	ctx := context.Background()
	svc, gate, c := newTestService(t)

	_, err := svc.StartTrial(ctx, 7)
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, PaymentInput{UserID: 7, Plan: "fleet", PeriodDays: 30})
	assert.ErrorIs(t, err, entitlements.ErrAlreadySubscribed)
	history, err := svc.History(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// Once the trial has run out the purchase goes through and starts now.
	c.t = c.t.AddDate(0, 0, 14)
	sub, err := svc.RecordPayment(ctx, PaymentInput{UserID: 7, Plan: "fleet", PeriodDays: 30, Reference: " inv-1 "})
	require.NoError(t, err)
	assert.True(t, c.t.Equal(sub.StartDate))
	assert.True(t, c.t.AddDate(0, 0, 30).Equal(*sub.EndDate))
	assert.Equal(t, PlanFleet, sub.Plan)
	assert.Equal(t, "inv-1", sub.Reference)

	r, err := gate.Remaining(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, r.Record.ID)
	assert.Equal(t, 30, r.DaysRemaining)

	_, err = svc.RecordPayment(ctx, PaymentInput{UserID: 7})
	assert.Error(t, err)
}

func TestLifetimeBlocksPurchasesUntilCanceled(t *testing.T) {
	ctx := context.Background()
	svc, gate, c := newTestService(t)

	_, err := svc.GrantLifetime(ctx, 9, "", "comp")
	require.NoError(t, err)
	c.t = c.t.AddDate(10, 0, 0)
	assert.NoError(t, gate.RequireActive(ctx, 9))

	_, err = svc.RecordPayment(ctx, PaymentInput{UserID: 9, PeriodDays: 30})
	assert.ErrorIs(t, err, entitlements.ErrAlreadySubscribed)
	_, err = svc.GrantLifetime(ctx, 9, "", "again")
	assert.ErrorIs(t, err, entitlements.ErrAlreadySubscribed)

	_, err = svc.Cancel(ctx, 9, "", "")
	require.NoError(t, err)
	assert.ErrorIs(t, gate.RequireActive(ctx, 9), entitlements.ErrSubscriptionExpired)

	_, err = svc.RecordPayment(ctx, PaymentInput{UserID: 9, PeriodDays: 30})
	assert.NoError(t, err)
}

func TestCancelAppendsSupersedingRecord(t *testing.T) {
	ctx := context.Background()
	svc, gate, c := newTestService(t)

	trial, err := svc.StartTrial(ctx, 5)
	require.NoError(t, err)
	c.t = c.t.Add(time.Hour)

	cancel, err := svc.Cancel(ctx, 5, "", "")
	require.NoError(t, err)
	require.NotNil(t, cancel)
	assert.Equal(t, CancelReference, cancel.Reference)
	assert.True(t, c.t.Equal(*cancel.EndDate))

	r, err := gate.Remaining(ctx, 5)
	require.NoError(t, err)
	assert.True(t, r.Expired)
	assert.Equal(t, 0, r.DaysRemaining)
	assert.ErrorIs(t, gate.RequireActive(ctx, 5), entitlements.ErrSubscriptionExpired)

	// History is append-only: the trial row keeps its original status and dates.
	history, err := svc.History(ctx, 5)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, cancel.ID, history[0].ID)
	assert.Equal(t, trial.ID, history[1].ID)
	assert.Equal(t, models.SubscriptionStatusTrial, history[1].Status)
	assert.True(t, trial.EndDate.Equal(*history[1].EndDate))

	// Nothing valid left, so a second cancel writes nothing.
	again, err := svc.Cancel(ctx, 5, "", "")
	require.NoError(t, err)
	assert.Nil(t, again)
	history, err = svc.History(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	// A fresh trial is allowed once canceled.
	_, err = svc.StartTrial(ctx, 5)
	assert.NoError(t, err)
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()
	svc, gate, _ := newTestService(t)

	body := []byte(`{"event_id":"evt_1","kind":"payment","user_id":3,"plan":"standard","period_days":30,"reference":"ch_1"}`)

	_, err := svc.HandleWebhook(ctx, "stripe", body, "sha256=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	res, err := svc.HandleWebhook(ctx, "stripe", body, SignWebhookPayload(body, testSecret))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	require.NotNil(t, res.SubscriptionID)
	assert.NoError(t, gate.RequireActive(ctx, 3))

	again, err := svc.HandleWebhook(ctx, "stripe", body, SignWebhookPayload(body, testSecret))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, *res.SubscriptionID, *again.SubscriptionID)

	history, err := svc.History(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

// flakyRepo fails the next CreateSubscription call once.
type flakyRepo struct {
	Repository
	failNext bool
}

func (r *flakyRepo) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if r.failNext {
		r.failNext = false
		return errors.New("db unavailable")
	}
	return r.Repository.CreateSubscription(ctx, sub)
}

func TestHandleWebhookRetriesFailedEvent(t *testing.T) {
	ctx := context.Background()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Subscription{}, &models.BillingWebhookEvent{}))
	repo := &flakyRepo{Repository: NewRepository(db), failNext: true}
	gate := entitlements.NewGate(repo)
	svc := NewService(repo, gate, 14, testSecret)

	body := []byte(`{"event_id":"evt_retry","kind":"payment","user_id":4,"period_days":30}`)
	sig := SignWebhookPayload(body, testSecret)

	_, err = svc.HandleWebhook(ctx, "stripe", body, sig)
	require.Error(t, err)
	assert.ErrorIs(t, gate.RequireActive(ctx, 4), entitlements.ErrSubscriptionExpired)

	var stored models.BillingWebhookEvent
	require.NoError(t, db.Where("event_id = ?", "evt_retry").First(&stored).Error)
	assert.NotEmpty(t, stored.ProcessingError)

	// The provider redelivers: the event is applied, not reported as a duplicate.
	res, err := svc.HandleWebhook(ctx, "stripe", body, sig)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	require.NotNil(t, res.SubscriptionID)
	assert.NoError(t, gate.RequireActive(ctx, 4))

	require.NoError(t, db.Where("event_id = ?", "evt_retry").First(&stored).Error)
	assert.Empty(t, stored.ProcessingError)

	// Now that it succeeded, further redeliveries are duplicates.
	again, err := svc.HandleWebhook(ctx, "stripe", body, sig)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)

	history, err := svc.History(ctx, 4)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestHandleWebhookCancel(t *testing.T) {
	ctx := context.Background()
	svc, gate, _ := newTestService(t)

	_, err := svc.RecordPayment(ctx, PaymentInput{UserID: 6, PeriodDays: 30})
	require.NoError(t, err)

	body := []byte(`{"event_id":"evt_c","kind":"cancel","user_id":6,"reference":"sub_del"}`)
	res, err := svc.HandleWebhook(ctx, "stripe", body, SignWebhookPayload(body, testSecret))
	require.NoError(t, err)
	require.NotNil(t, res.SubscriptionID)
	assert.ErrorIs(t, gate.RequireActive(ctx, 6), entitlements.ErrSubscriptionExpired)

	history, err := svc.History(ctx, 6)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "sub_del", history[0].Reference)
	assert.Equal(t, "stripe", history[0].Source)
}

func TestHandleWebhookRejectsBadPayload(t *testing.T) {
	svc, _, _ := newTestService(t)
	for _, body := range []string{
		`not json`,
		`{"event_id":"e","kind":"refund","user_id":1}`,
		`{"event_id":"e","kind":"payment","user_id":1}`,
		`{"event_id":"e","kind":"payment","period_days":30}`,
	} {
		b := []byte(body)
		_, err := svc.HandleWebhook(context.Background(), "stripe", b, SignWebhookPayload(b, testSecret))
		assert.ErrorIs(t, err, ErrInvalidPayload, body)
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"a":1}`)
	sig := SignWebhookPayload(payload, "secret")
	assert.True(t, VerifyWebhookSignature(payload, sig, "secret"))
	assert.False(t, VerifyWebhookSignature(payload, sig, "other"))
	assert.False(t, VerifyWebhookSignature(payload, sig, ""))
	assert.False(t, VerifyWebhookSignature(payload, "zz", "secret"))
}
