package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// SpotCheck is a roadside or yard walk-round check of a vehicle.
type SpotCheck struct {
	ID uint `gorm:"primaryKey" json:"id"`
	Ownership
	VehicleReg  string         `gorm:"type:varchar(20);not null" json:"vehicle_reg" validate:"required,min=2,max=20"`
	CheckedBy   string         `gorm:"type:varchar(150);default:''" json:"checked_by" validate:"max=150"`
	CheckedAt   time.Time      `gorm:"not null" json:"checked_at" validate:"required"`
	DefectCount int            `gorm:"default:0" json:"defect_count" validate:"gte=0"`
	Roadworthy  bool           `gorm:"default:true" json:"roadworthy"`
	Notes       string         `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (s *SpotCheck) Validate() error {
	return validator.New().Struct(s)
}

func (s *SpotCheck) RecordID() uint {
	return s.ID
}

func (s *SpotCheck) Assign(id uint, o Ownership) {
	s.ID, s.Ownership = id, o
}
