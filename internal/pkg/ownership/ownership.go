// Package ownership decides which identity may act on a compliance record.
//
// Resolve is the single-record predicate and Filter is the same predicate
// expressed as a storage query for list endpoints. Both read Ownership only,
// so the two cannot drift apart.
package ownership

import (
	"gorm.io/gorm"

	"github.com/fleetward/fleetward/app/models"
)

// Resolve reports whether actingID may act on the record: it must be either
// the writer or the standalone client the record belongs to. There is no
// role override here; admin bypass is the caller's decision.
func Resolve(record models.Owned, actingID uint) bool {
	if record == nil || actingID == 0 {
		return false
	}
	o := record.OwnershipFields()
	if o.CreatedBy == actingID {
		return true
	}
	return o.StandAloneID != nil && *o.StandAloneID == actingID
}

// Stamp builds the ownership fields for a new record written by callerID on
// behalf of effectiveID. A standalone user writing for itself gets no
// StandAloneID.
func Stamp(callerID, effectiveID uint) models.Ownership {
	o := models.Ownership{CreatedBy: callerID}
	if effectiveID != 0 && effectiveID != callerID {
		id := effectiveID
		o.StandAloneID = &id
	}
	return o
}

// Filter is the list-level form of Resolve.
type Filter struct {
	ActingID uint
	// Unrestricted is set for platform admins; it disables the filter entirely.
	Unrestricted bool
}

// For returns the filter for an effective identity.
func For(actingID uint) Filter {
	return Filter{ActingID: actingID}
}

// Matches evaluates the filter against a loaded record.
func (f Filter) Matches(record models.Owned) bool {
	if f.Unrestricted {
		return record != nil
	}
	return Resolve(record, f.ActingID)
}

// Scope applies the filter to a GORM query:
// created_by = X OR stand_alone_id = X.
func (f Filter) Scope(db *gorm.DB) *gorm.DB {
	if f.Unrestricted {
		return db
	}
	if f.ActingID == 0 {
		return db.Where("1 = 0")
	}
	return db.Where("(created_by = ? OR stand_alone_id = ?)", f.ActingID, f.ActingID)
}
