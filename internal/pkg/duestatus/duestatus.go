// Package duestatus maps the date fields of renewal-style records to the
// stored status enum. The stored value is a cache; Derive is the source of truth.
package duestatus

import "time"

// Status is the stored lifecycle value of a dated record.
type Status string

const (
	Scheduled Status = "scheduled"
	Active    Status = "active"
	DueSoon   Status = "due_soon"
	Expired   Status = "expired"
)

// DueSoonWindowDays is the inclusive window in which a due date counts as due soon.
const DueSoonWindowDays = 7

// Valid reports whether s is one of the four known states.
func (s Status) Valid() bool {
	switch s {
	case Scheduled, Active, DueSoon, Expired:
		return true
	default:
		return false
	}
}

// Dates are the inputs of Derive. Nil means the field is absent.
type Dates struct {
	StartDate       *time.Time
	ExpiryOrDueDate *time.Time
	ReminderSet     bool
	ReminderDate    *time.Time
}

// Derive returns the status for dates as seen on today. Rules are applied in
// order and the first match wins. All comparisons are on calendar days in
// today's location.
func Derive(d Dates, today time.Time) Status {
	day := truncate(today, today.Location())

	if d.StartDate != nil && truncate(*d.StartDate, today.Location()).After(day) {
		return Scheduled
	}
	if d.ExpiryOrDueDate == nil {
		return Active
	}
	due := truncate(*d.ExpiryOrDueDate, today.Location())
	if due.Before(day) {
		return Expired
	}
	if daysBetween(day, due) <= DueSoonWindowDays {
		return DueSoon
	}
	if d.ReminderSet && d.ReminderDate != nil && !truncate(*d.ReminderDate, today.Location()).After(day) {
		return DueSoon
	}
	return Active
}

// DaysUntil returns the number of calendar days from today to t, negative when t is in the past.
func DaysUntil(t, today time.Time) int {
	return daysBetween(truncate(today, today.Location()), truncate(t, today.Location()))
}

func truncate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// daysBetween counts calendar days between two midnights. Both are re-based
// onto UTC so DST shifts in loc cannot produce 23 or 25 hour days.
func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
