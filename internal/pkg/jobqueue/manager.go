package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Manager owns the daily reconciliation schedule. It is built once by the
// process container; there is no package-level instance.
type Manager struct {
	reconciler *Reconciler
	hour       int
	minute     int
	loc        *time.Location
	now        func() time.Time
	after      func(time.Duration) <-chan time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewManager schedules reconciler to run every day at hour:minute in loc.
func NewManager(reconciler *Reconciler, hour, minute int, loc *time.Location) *Manager {
	if loc == nil {
		loc = time.UTC
	}
	return &Manager{
		reconciler: reconciler,
		hour:       hour,
		minute:     minute,
		loc:        loc,
		now:        time.Now,
		after:      time.After,
	}
}

// WithClock replaces the time source and the timer used between runs.
func (m *Manager) WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) *Manager {
	m.now = now
	m.after = after
	return m
}

// Start starts the schedule worker
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Infof("[JobQueue Manager] Starting reconciliation schedule (daily at %02d:%02d %s)", m.hour, m.minute, m.loc)

	m.wg.Add(1)
	go m.scheduleWorker(m.stopCh)

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the schedule and waits for an in-flight scheduled run to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	log.Info("[JobQueue Manager] Stopping reconciliation schedule...")
	close(m.stopCh)
	m.stopCh = nil
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// RunNow triggers a manual run through the same overlap guard as the schedule.
func (m *Manager) RunNow(ctx context.Context) (RunSummary, error) {
	return m.reconciler.Reconcile(ctx, TriggerManual)
}

// NextRun returns when the schedule fires next.
func (m *Manager) NextRun() time.Time {
	return nextRunAt(m.now(), m.hour, m.minute, m.loc)
}

// Reconciler returns the reconciler driven by this manager.
func (m *Manager) Reconciler() *Reconciler {
	return m.reconciler
}

func (m *Manager) scheduleWorker(stopCh <-chan struct{}) {
	defer m.wg.Done()
	for {
		next := m.NextRun()
		wait := next.Sub(m.now())
		log.Debugf("[JobQueue Manager] Next reconciliation at %s", next.Format(time.RFC3339))

		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Schedule worker stopping")
			return
		case <-m.after(wait):
			if _, err := m.reconciler.Reconcile(context.Background(), TriggerSchedule); err != nil {
				log.Errorf("[JobQueue Manager] Scheduled reconciliation failed: %v", err)
			}
		}
	}
}

// nextRunAt returns the first hour:minute in loc strictly after now.
func nextRunAt(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	y, mo, d := local.Date()
	candidate := time.Date(y, mo, d, hour, minute, 0, 0, loc)
	if !candidate.After(now) {
		candidate = time.Date(y, mo, d+1, hour, minute, 0, 0, loc)
	}
	return candidate
}
