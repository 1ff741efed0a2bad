package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/fleetward/fleetward/app/models"
	"github.com/fleetward/fleetward/internal/pkg/entitlements"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

// DefaultTrialDays is used when the service is built without an explicit trial length.
const DefaultTrialDays = 14

// Service writes subscription records. It is the only writer; everything
// else reads validity through the entitlements gate.
type Service struct {
	repo          Repository
	gate          *entitlements.Gate
	trialDays     int
	webhookSecret string
	validate      *validator.Validate
	now           func() time.Time
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, gate *entitlements.Gate, trialDays int, webhookSecret string) *Service {
	if trialDays <= 0 {
		trialDays = DefaultTrialDays
	}
	return &Service{
		repo:          repo,
		gate:          gate,
		trialDays:     trialDays,
		webhookSecret: webhookSecret,
		validate:      validator.New(),
		now:           time.Now,
	}
}

// NewServiceFromDB creates a billing service and its gate from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, trialDays int, webhookSecret string) *Service {
	repo := NewRepository(db)
	return NewService(repo, entitlements.NewGate(repo), trialDays, webhookSecret)
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// StartTrial opens a trial for a user who has no current subscription.
func (s *Service) StartTrial(ctx context.Context, userID uint) (*models.Subscription, error) {
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}
	if err := s.gate.RequireNoCurrent(ctx, userID); err != nil {
		return nil, err
	}
	start := s.now().UTC()
	end := periodEnd(start, s.trialDays)
	sub := &models.Subscription{
		UserID:    userID,
		Status:    models.SubscriptionStatusTrial,
		Plan:      PlanStandard,
		StartDate: start,
		EndDate:   &end,
		Source:    SourceTrial,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	log.Infof("[Billing] Started %d day trial for user %d", s.trialDays, userID)
	return sub, nil
}

// RecordPayment writes a new active record starting now. A purchase is refused
// while the user still has a valid record.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (*models.Subscription, error) {
	if in.UserID == 0 || in.PeriodDays <= 0 {
		return nil, errors.New("user_id and a positive period_days are required")
	}
	if err := s.gate.RequireNoCurrent(ctx, in.UserID); err != nil {
		return nil, err
	}
	start := s.now().UTC()
	end := periodEnd(start, in.PeriodDays)
	sub := &models.Subscription{
		UserID:    in.UserID,
		Status:    models.SubscriptionStatusActive,
		Plan:      normalizePlan(in.Plan),
		StartDate: start,
		EndDate:   &end,
		Source:    normalizeSource(in.Source),
		Reference: strings.TrimSpace(in.Reference),
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	log.Infof("[Billing] Recorded %d day payment for user %d, valid until %s", in.PeriodDays, in.UserID, end.Format(time.RFC3339))
	return sub, nil
}

// GrantLifetime writes a record that never expires. Like a payment, it needs
// the user to hold no valid record.
func (s *Service) GrantLifetime(ctx context.Context, userID uint, source, reference string) (*models.Subscription, error) {
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}
	if err := s.gate.RequireNoCurrent(ctx, userID); err != nil {
		return nil, err
	}
	sub := &models.Subscription{
		UserID:     userID,
		Status:     models.SubscriptionStatusActive,
		Plan:       PlanFleet,
		StartDate:  s.now().UTC(),
		IsLifetime: true,
		Source:     normalizeSource(source),
		Reference:  strings.TrimSpace(reference),
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	log.Infof("[Billing] Granted lifetime access to user %d", userID)
	return sub, nil
}

// Cancel ends access now by appending a record that supersedes the current
// one and is already over. Earlier records are left as written. Returns nil
// when there was nothing valid to cancel.
func (s *Service) Cancel(ctx context.Context, userID uint, source, reference string) (*models.Subscription, error) {
	remaining, err := s.gate.Remaining(ctx, userID)
	if err != nil {
		return nil, err
	}
	if remaining.Expired || remaining.Record == nil {
		log.Infof("[Billing] Cancel for user %d ignored, nothing valid", userID)
		return nil, nil
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		reference = CancelReference
	}
	now := s.now().UTC()
	sub := &models.Subscription{
		UserID:    userID,
		Status:    models.SubscriptionStatusActive,
		Plan:      remaining.Record.Plan,
		StartDate: now,
		EndDate:   &now,
		Source:    normalizeSource(source),
		Reference: reference,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	log.Infof("[Billing] Canceled access for user %d, superseding record %d", userID, remaining.Record.ID)
	return sub, nil
}

// History lists all records of a user, newest first.
func (s *Service) History(ctx context.Context, userID uint) ([]models.Subscription, error) {
	return s.repo.ListSubscriptionsByUser(ctx, userID)
}

// HandleWebhook verifies, records and applies a provider notification.
// Redelivered events are acknowledged without being applied again.
func (s *Service) HandleWebhook(ctx context.Context, source string, payload []byte, signature string) (WebhookResult, error) {
	if !VerifyWebhookSignature(payload, signature, s.webhookSecret) {
		return WebhookResult{}, ErrInvalidSignature
	}
	var in WebhookPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := s.validate.Struct(in); err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if in.Kind == models.BillingEventPayment && in.PeriodDays == 0 {
		return WebhookResult{}, fmt.Errorf("%w: period_days is required for payments", ErrInvalidPayload)
	}

	eventID := strings.TrimSpace(in.EventID)
	if eventID == "" {
		sum := sha256.Sum256(payload)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}
	created, event, err := s.repo.CreateWebhookEventIfNotExists(ctx, &models.BillingWebhookEvent{
		Source:         normalizeSource(source),
		EventID:        eventID,
		Kind:           in.Kind,
		UserID:         in.UserID,
		PayloadJSON:    string(payload),
		SignatureValid: true,
	})
	if err != nil {
		return WebhookResult{}, err
	}
	if !created {
		if event.ProcessingError == "" {
			log.Infof("[Billing] Duplicate webhook %s/%s ignored", event.Source, event.EventID)
			return WebhookResult{Duplicate: true, SubscriptionID: event.SubscriptionID, ProcessedAt: event.ProcessedAt}, nil
		}
		// The earlier attempt failed; the redelivery gets another go.
		log.Infof("[Billing] Retrying webhook %s/%s, previous attempt: %q", event.Source, event.EventID, event.ProcessingError)
	}

	var sub *models.Subscription
	switch in.Kind {
	case models.BillingEventPayment:
		sub, err = s.RecordPayment(ctx, PaymentInput{
			UserID:     in.UserID,
			Plan:       in.Plan,
			PeriodDays: in.PeriodDays,
			Source:     event.Source,
			Reference:  in.Reference,
		})
	case models.BillingEventLifetime:
		sub, err = s.GrantLifetime(ctx, in.UserID, event.Source, in.Reference)
	case models.BillingEventCancel:
		sub, err = s.Cancel(ctx, in.UserID, event.Source, in.Reference)
	}

	var subID *uint
	if sub != nil {
		subID = &sub.ID
	}
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	if markErr := s.repo.MarkWebhookProcessed(ctx, event.ID, subID, errMsg); markErr != nil {
		log.Errorf("[Billing] Failed to mark webhook %d processed: %v", event.ID, markErr)
	}
	if err != nil {
		return WebhookResult{}, err
	}
	processed := s.now().UTC()
	return WebhookResult{SubscriptionID: subID, ProcessedAt: &processed}, nil
}
