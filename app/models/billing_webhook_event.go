package models

import "time"

const (
	BillingEventPayment  = "payment"
	BillingEventLifetime = "lifetime"
	BillingEventCancel   = "cancel"
)

// BillingWebhookEvent is one inbound payment-provider notification. The
// (source, event_id) pair is unique so a redelivered webhook is recorded once.
type BillingWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Source          string     `gorm:"type:varchar(20);not null;index:ux_billing_events_source_event,unique,priority:1" json:"source"`
	EventID         string     `gorm:"type:varchar(191);not null;index:ux_billing_events_source_event,unique,priority:2" json:"event_id"`
	Kind            string     `gorm:"type:varchar(32);not null;index" json:"kind"`
	UserID          uint       `gorm:"index" json:"user_id"`
	PayloadJSON     string     `gorm:"type:text;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false" json:"signature_valid"`
	SubscriptionID  *uint      `gorm:"default:null" json:"subscription_id,omitempty"`
	ProcessedAt     *time.Time `gorm:"default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
