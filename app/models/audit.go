package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	AuditOutcomePass    = "pass"
	AuditOutcomeAdvice  = "advisory"
	AuditOutcomeFail    = "fail"
	AuditOutcomePending = "pending"
)

// Audit is a periodic operator compliance audit (maintenance, drivers' hours, records).
type Audit struct {
	ID uint `gorm:"primaryKey" json:"id"`
	Ownership
	Title       string         `gorm:"type:varchar(255);not null" json:"title" validate:"required,min=2,max=255"`
	AuditorName string         `gorm:"type:varchar(150);default:''" json:"auditor_name" validate:"max=150"`
	ConductedAt *time.Time     `gorm:"default:null" json:"conducted_at,omitempty"`
	Outcome     string         `gorm:"type:varchar(20);not null;default:'pending'" json:"outcome" validate:"oneof=pass advisory fail pending"`
	Score       int            `gorm:"default:0" json:"score" validate:"gte=0,lte=100"`
	Findings    string         `gorm:"type:text" json:"findings"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Audit) Validate() error {
	if a.Outcome == "" {
		a.Outcome = AuditOutcomePending
	}
	return validator.New().Struct(a)
}

func (a *Audit) RecordID() uint {
	return a.ID
}

func (a *Audit) Assign(id uint, o Ownership) {
	a.ID, a.Ownership = id, o
}
