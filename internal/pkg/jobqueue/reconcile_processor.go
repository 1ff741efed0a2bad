package jobqueue

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/fleetward/fleetward/app/repository"
	"github.com/fleetward/fleetward/internal/pkg/duestatus"
	"github.com/fleetward/fleetward/internal/pkg/metrics"
)

// SummaryStore keeps the most recent run summary.
type SummaryStore interface {
	SaveSummary(ctx context.Context, s RunSummary) error
	LastSummary(ctx context.Context) (*RunSummary, error)
}

// Reconciler recomputes the cached status of every live temporal record and
// writes back the ones that drifted. Runs never overlap.
type Reconciler struct {
	sources   []repository.TemporalRepository
	summaries SummaryStore
	metrics   *metrics.Metrics
	loc       *time.Location
	now       func() time.Time
	running   atomic.Bool
}

func NewReconciler(sources []repository.TemporalRepository, summaries SummaryStore, m *metrics.Metrics, loc *time.Location) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	return &Reconciler{sources: sources, summaries: summaries, metrics: m, loc: loc, now: time.Now}
}

// WithClock replaces the time source.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Running reports whether a run is in flight.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

// Reconcile runs one pass. A record whose write fails is logged and skipped;
// only a failure to list a record type aborts the run.
func (r *Reconciler) Reconcile(ctx context.Context, trigger Trigger) (RunSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		log.Warnf("[Reconcile] %s run skipped, another run is in progress", trigger)
		r.metrics.ReconcileFinished("skipped", 0, 0, 0)
		return RunSummary{}, ErrAlreadyRunning
	}
	defer r.running.Store(false)

	started := r.now()
	today := started.In(r.loc)
	summary := RunSummary{
		RunID:         uuid.NewString(),
		Trigger:       trigger,
		StartedAt:     started.UTC(),
		Today:         today.Format(time.DateOnly),
		UpdatedByKind: make(map[string]int, len(r.sources)),
	}
	log.Infof("[Reconcile] Run %s started (%s) for %s", summary.RunID, trigger, summary.Today)

	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return r.abort(summary, err)
		}
		rows, err := src.ListTemporal(ctx)
		if err != nil {
			return r.abort(summary, fmt.Errorf("listing %s: %w", src.Kind(), err))
		}
		summary.Scanned += len(rows)

		for _, row := range rows {
			derived := string(duestatus.Derive(duestatus.Dates{
				StartDate:       row.StartDate,
				ExpiryOrDueDate: row.DueDate,
				ReminderSet:     row.ReminderSet,
				ReminderDate:    row.ReminderDate,
			}, today))
			if derived == row.Status {
				continue
			}
			written, err := src.UpdateStatus(ctx, row, derived)
			if err != nil {
				summary.Failed++
				log.Errorf("[Reconcile] Failed to set %s %d to %s: %v", src.Kind(), row.ID, derived, err)
				continue
			}
			if !written {
				// Edited or deleted since listing; the write path already derived its status.
				summary.Skipped++
				log.Debugf("[Reconcile] Skipped %s %d: changed since read", src.Kind(), row.ID)
				continue
			}
			summary.UpdatedCount++
			summary.UpdatedByKind[src.Kind()]++
		}
	}

	summary.FinishedAt = r.now().UTC()
	log.Infof("[Reconcile] Run %s finished: scanned=%d updated=%d skipped=%d failed=%d", summary.RunID, summary.Scanned, summary.UpdatedCount, summary.Skipped, summary.Failed)
	r.metrics.ReconcileFinished("ok", summary.UpdatedCount, summary.Failed, summary.Duration().Seconds())
	r.saveSummary(summary)
	return summary, nil
}

// LastSummary returns the summary of the most recent completed run, or nil.
func (r *Reconciler) LastSummary(ctx context.Context) (*RunSummary, error) {
	if r.summaries == nil {
		return nil, nil
	}
	return r.summaries.LastSummary(ctx)
}

func (r *Reconciler) abort(summary RunSummary, err error) (RunSummary, error) {
	summary.FinishedAt = r.now().UTC()
	log.Errorf("[Reconcile] Run %s aborted: %v", summary.RunID, err)
	r.metrics.ReconcileFinished("error", summary.UpdatedCount, summary.Failed, summary.Duration().Seconds())
	return summary, err
}

func (r *Reconciler) saveSummary(s RunSummary) {
	if r.summaries == nil {
		return
	}
	// The caller's context may already be gone when a manual run returns.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.summaries.SaveSummary(ctx, s); err != nil {
		log.Warnf("[Reconcile] Failed to store run summary: %v", err)
	}
}
