package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	RenewalCategoryOperatorLicence = "operator_licence"
	RenewalCategoryMOT             = "mot"
	RenewalCategoryInsurance       = "insurance"
	RenewalCategoryTachograph      = "tachograph_calibration"
	RenewalCategoryOther           = "other"
)

// RenewalItem tracks a licence, test or certificate that must be renewed by a due date.
type RenewalItem struct {
	ID uint `gorm:"primaryKey" json:"id"`
	Ownership
	Title      string `gorm:"type:varchar(255);not null" json:"title" validate:"required,min=2,max=255"`
	Category   string `gorm:"type:varchar(50);not null;default:'other'" json:"category" validate:"oneof=operator_licence mot insurance tachograph_calibration other"`
	VehicleReg string `gorm:"type:varchar(20);default:''" json:"vehicle_reg" validate:"max=20"`
	Notes      string `gorm:"type:text" json:"notes"`
	TemporalFields
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *RenewalItem) Validate() error {
	if r.Category == "" {
		r.Category = RenewalCategoryOther
	}
	return validator.New().Struct(r)
}

func (r *RenewalItem) RecordID() uint {
	return r.ID
}

func (r *RenewalItem) Assign(id uint, o Ownership) {
	r.ID, r.Ownership = id, o
}
