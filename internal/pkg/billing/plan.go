package billing

import (
	"strings"
	"time"
)

const (
	PlanStandard = "standard"
	PlanFleet    = "fleet"

	SourceManual  = "manual"
	SourceTrial   = "trial"
	SourceWebhook = "webhook"

	// CancelReference marks records written by Cancel when no reference is given.
	CancelReference = "cancel"
)

func normalizePlan(plan string) string {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case PlanFleet:
		return PlanFleet
	default:
		return PlanStandard
	}
}

func normalizeSource(source string) string {
	s := strings.ToLower(strings.TrimSpace(source))
	if s == "" {
		return SourceManual
	}
	return s
}

// periodEnd adds whole days in UTC so the end keeps the start's time of day.
func periodEnd(start time.Time, days int) time.Time {
	return start.UTC().AddDate(0, 0, days)
}
