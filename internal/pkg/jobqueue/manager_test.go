package jobqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetward/fleetward/app/repository"
)

func TestNextRunAt(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skip("tzdata not available")
	}

	tests := []struct {
		name string
		now  time.Time
		loc  *time.Location
		want time.Time
	}{
		{"later today", time.Date(2026, 1, 10, 1, 0, 0, 0, time.UTC), time.UTC, time.Date(2026, 1, 10, 2, 0, 0, 0, time.UTC)},
		{"exactly at run time goes to tomorrow", time.Date(2026, 1, 10, 2, 0, 0, 0, time.UTC), time.UTC, time.Date(2026, 1, 11, 2, 0, 0, 0, time.UTC)},
		{"after run time", time.Date(2026, 1, 10, 23, 59, 0, 0, time.UTC), time.UTC, time.Date(2026, 1, 11, 2, 0, 0, 0, time.UTC)},
		{"month end", time.Date(2026, 1, 31, 3, 0, 0, 0, time.UTC), time.UTC, time.Date(2026, 2, 1, 2, 0, 0, 0, time.UTC)},
		{"local zone in summer", time.Date(2026, 7, 1, 0, 30, 0, 0, time.UTC), london, time.Date(2026, 7, 1, 2, 0, 0, 0, london)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextRunAt(tt.now, 2, 0, tt.loc)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			assert.True(t, got.After(tt.now))
		})
	}
}

type fakeTimer struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
	fire  chan time.Time
}

func (f *fakeTimer) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTimer) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits = append(f.waits, d)
	return f.fire
}

func (f *fakeTimer) waitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waits)
}

func TestManagerRunsOnSchedule(t *testing.T) {
	src := newMemSource("renewal_item", fixtureRows()...)
	clock := &fakeTimer{now: time.Date(2026, 7, 15, 1, 0, 0, 0, time.UTC), fire: make(chan time.Time)}
	rec := NewReconciler([]repository.TemporalRepository{src}, nil, nil, time.UTC).WithClock(clock.Now)
	m := NewManager(rec, 2, 0, time.UTC).WithClock(clock.Now, clock.After)

	assert.False(t, m.IsRunning())
	m.Start()
	m.Start()
	assert.True(t, m.IsRunning())

	require.Eventually(t, func() bool { return clock.waitCount() == 1 }, time.Second, 5*time.Millisecond)
	clock.mu.Lock()
	assert.Equal(t, time.Hour, clock.waits[0])
	clock.mu.Unlock()

	clock.fire <- clock.Now()
	require.Eventually(t, func() bool { return clock.waitCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "expired", src.status(1))

	m.Stop()
	assert.False(t, m.IsRunning())
	m.Stop()
}

func TestManagerRunNowUsesGuard(t *testing.T) {
	src := newMemSource("renewal_item", fixtureRows()...)
	src.block = make(chan struct{})
	rec := newTestReconciler(src)
	m := NewManager(rec, 2, 0, time.UTC)

	done := make(chan struct{})
	go func() {
		_, _ = m.RunNow(context.Background())
		close(done)
	}()
	require.Eventually(t, rec.Running, time.Second, 5*time.Millisecond)

	_, err := m.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	close(src.block)
	<-done
}
