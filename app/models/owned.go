package models

import (
	"time"

	"github.com/fleetward/fleetward/internal/pkg/duestatus"
)

// Ownership is embedded by every compliance record. CreatedBy is whoever
// performed the write; StandAloneID is set only when a transport manager
// wrote on behalf of a delegated client and then equals that client's id.
type Ownership struct {
	CreatedBy    uint  `gorm:"not null;index" json:"created_by"`
	StandAloneID *uint `gorm:"index;default:null" json:"stand_alone_id,omitempty"`
}

// Owned is implemented by every record carrying Ownership.
type Owned interface {
	OwnershipFields() Ownership
}

func (o Ownership) OwnershipFields() Ownership {
	return o
}

// Record is a compliance record exposed through the owned-resource API.
// Assign sets the identity and ownership that a request body may not choose.
type Record interface {
	Owned
	Validate() error
	RecordID() uint
	Assign(id uint, o Ownership)
}

// TemporalFields are the date inputs of the due-status rules plus the cached result.
type TemporalFields struct {
	StartDate    *time.Time `gorm:"default:null" json:"start_date,omitempty"`
	DueDate      *time.Time `gorm:"default:null;index" json:"expiry_or_due_date,omitempty"`
	ReminderSet  bool       `gorm:"default:false" json:"reminder_set"`
	ReminderDate *time.Time `gorm:"default:null" json:"reminder_date,omitempty"`
	Status       string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
}

func (t TemporalFields) Dates() duestatus.Dates {
	return duestatus.Dates{
		StartDate:       t.StartDate,
		ExpiryOrDueDate: t.DueDate,
		ReminderSet:     t.ReminderSet,
		ReminderDate:    t.ReminderDate,
	}
}

// RefreshStatus recomputes Status from the date fields and reports whether it changed.
func (t *TemporalFields) RefreshStatus(today time.Time) bool {
	next := string(duestatus.Derive(t.Dates(), today))
	if next == t.Status {
		return false
	}
	t.Status = next
	return true
}
