package models

import "time"

const (
	SubscriptionStatusTrial  = "trial"
	SubscriptionStatusActive = "active"
)

// Subscription is one billing record. Records are append-only: a renewal,
// upgrade or cancellation writes a new row that supersedes the earlier ones.
type Subscription struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index:idx_subscriptions_user_created,priority:1" json:"user_id"`
	Status     string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	Plan       string     `gorm:"type:varchar(50);not null;default:'standard'" json:"plan"`
	StartDate  time.Time  `gorm:"not null" json:"start_date"`
	EndDate    *time.Time `gorm:"default:null" json:"end_date,omitempty"`
	IsLifetime bool       `gorm:"default:false" json:"is_lifetime"`
	Source     string     `gorm:"type:varchar(32);default:''" json:"source"`
	Reference  string     `gorm:"type:varchar(191);default:''" json:"reference"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index:idx_subscriptions_user_created,priority:2" json:"created_at"`
}

// IsCurrentStatus reports whether the status can authorise gating decisions.
func IsCurrentStatus(status string) bool {
	return status == SubscriptionStatusActive || status == SubscriptionStatusTrial
}
