package models

import (
	"time"

	"gorm.io/datatypes"
)

// DefaultRosterCapacity is the number of concurrent pending/approved clients a
// transport manager may hold unless an admin changes it.
const DefaultRosterCapacity = 4

type DelegationStatus string

const (
	DelegationPending         DelegationStatus = "pending"
	DelegationApproved        DelegationStatus = "approved"
	DelegationRevoked         DelegationStatus = "revoked"
	DelegationLeaveRequested  DelegationStatus = "leave_requested"
	DelegationRemoveRequested DelegationStatus = "remove_requested"
)

// Occupying reports whether an entry in this status counts against capacity.
func (s DelegationStatus) Occupying() bool {
	return s == DelegationPending || s == DelegationApproved
}

// DelegationEntry is one client relationship inside a roster.
type DelegationEntry struct {
	ClientID    uint             `json:"client_id"`
	Status      DelegationStatus `json:"status"`
	RequestedAt time.Time        `json:"requested_at"`
	ApprovedAt  *time.Time       `json:"approved_at,omitempty"`
	RevokedAt   *time.Time       `json:"revoked_at,omitempty"`
}

// DelegationRoster is the single document per transport manager. Entries are
// stored as one JSON column so every mutation is a single-row update guarded
// by Version.
type DelegationRoster struct {
	ID        uint                                 `gorm:"primaryKey" json:"id"`
	ManagerID uint                                 `gorm:"not null;uniqueIndex" json:"manager_id"`
	Capacity  int                                  `gorm:"not null;default:4" json:"capacity"`
	Entries   datatypes.JSONSlice[DelegationEntry] `gorm:"type:json" json:"entries"`
	Version   uint                                 `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time                            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time                            `gorm:"autoUpdateTime" json:"updated_at"`
}

// Find returns the entry for clientID, or nil.
func (r *DelegationRoster) Find(clientID uint) *DelegationEntry {
	for i := range r.Entries {
		if r.Entries[i].ClientID == clientID {
			return &r.Entries[i]
		}
	}
	return nil
}

// ActiveCount counts entries that occupy a capacity slot.
func (r *DelegationRoster) ActiveCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.Status.Occupying() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so callers can mutate without touching a cached value.
func (r *DelegationRoster) Clone() *DelegationRoster {
	cp := *r
	cp.Entries = make(datatypes.JSONSlice[DelegationEntry], len(r.Entries))
	copy(cp.Entries, r.Entries)
	return &cp
}

// DelegationLink claims a client for exactly one manager while the client has
// a non-revoked entry anywhere. The unique index on ClientID is what makes
// cross-roster uniqueness hold under concurrent requests.
type DelegationLink struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ClientID  uint      `gorm:"not null;uniqueIndex" json:"client_id"`
	ManagerID uint      `gorm:"not null;index" json:"manager_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
