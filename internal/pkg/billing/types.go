package billing

import "time"

// PaymentInput is a completed payment that extends a user's access.
type PaymentInput struct {
	UserID     uint
	Plan       string
	PeriodDays int
	Source     string
	Reference  string
}

// WebhookPayload is the body a payment provider posts to the billing webhook.
type WebhookPayload struct {
	EventID    string `json:"event_id" validate:"max=191"`
	Kind       string `json:"kind" validate:"required,oneof=payment lifetime cancel"`
	UserID     uint   `json:"user_id" validate:"required"`
	Plan       string `json:"plan"`
	PeriodDays int    `json:"period_days" validate:"omitempty,min=1,max=3660"`
	Reference  string `json:"reference" validate:"max=191"`
}

// WebhookResult reports what happened to a delivered webhook.
type WebhookResult struct {
	Duplicate      bool       `json:"duplicate"`
	SubscriptionID *uint      `json:"subscription_id,omitempty"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
}
