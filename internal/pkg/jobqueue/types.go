package jobqueue

import (
	"errors"
	"time"
)

// Trigger names what started a reconciliation run.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// ErrAlreadyRunning is returned when a run is requested while another is in flight.
var ErrAlreadyRunning = errors.New("reconciliation already running")

// RunSummary describes one completed reconciliation run.
type RunSummary struct {
	RunID         string         `json:"run_id"`
	Trigger       Trigger        `json:"trigger"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	Today         string         `json:"today"`
	Scanned       int            `json:"scanned"`
	UpdatedCount  int            `json:"updated_count"`
	Skipped       int            `json:"skipped"`
	Failed        int            `json:"failed"`
	UpdatedByKind map[string]int `json:"updated_by_kind"`
}

// Duration returns the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
