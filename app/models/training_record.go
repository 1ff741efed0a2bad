package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// TrainingRecord is a driver qualification (CPC module, ADR, forklift ...) with an expiry.
type TrainingRecord struct {
	ID uint `gorm:"primaryKey" json:"id"`
	Ownership
	DriverName string `gorm:"type:varchar(150);not null" json:"driver_name" validate:"required,min=2,max=150"`
	CourseName string `gorm:"type:varchar(255);not null" json:"course_name" validate:"required,min=2,max=255"`
	Provider   string `gorm:"type:varchar(150);default:''" json:"provider" validate:"max=150"`
	Hours      int    `gorm:"default:0" json:"hours" validate:"gte=0,lte=1000"`
	TemporalFields
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (t *TrainingRecord) Validate() error {
	return validator.New().Struct(t)
}

func (t *TrainingRecord) RecordID() uint {
	return t.ID
}

func (t *TrainingRecord) Assign(id uint, o Ownership) {
	t.ID, t.Ownership = id, o
}
