package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYorkTrigger(t *testing.T, interval time.Duration) *DailyTrigger {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return NewDailyTrigger(DailyConfig{Location: loc, Hour: 13, Minute: 30, CheckInterval: interval}, nil)
}

func TestShouldFireWindow(t *testing.T) {
	t.Parallel()

	trigger := newYorkTrigger(t, time.Minute)
	loc := trigger.cfg.Location

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "before target", at: time.Date(2025, 12, 9, 13, 29, 59, 0, loc), want: false},
		{name: "at target", at: time.Date(2025, 12, 9, 13, 30, 0, 0, loc), want: true},
		{name: "inside window", at: time.Date(2025, 12, 9, 13, 30, 45, 0, loc), want: true},
		{name: "after window", at: time.Date(2025, 12, 9, 13, 31, 0, 0, loc), want: false},
		{name: "utc instant of target", at: time.Date(2025, 12, 9, 18, 30, 10, 0, time.UTC), want: true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, trigger.shouldFire(tt.at), tt.name)
	}
}

func TestShouldFireOncePerDay(t *testing.T) {
	t.Parallel()

	trigger := newYorkTrigger(t, time.Minute)
	loc := trigger.cfg.Location
	at := time.Date(2025, 12, 9, 13, 30, 5, 0, loc)

	var runs []time.Time
	trigger.now = func() time.Time { return at }
	job := func(ts time.Time) { runs = append(runs, ts) }

	trigger.tick(job)
	at = at.Add(20 * time.Second)
	trigger.tick(job)
	require.Len(t, runs, 1)

	at = time.Date(2025, 12, 10, 13, 30, 1, 0, loc)
	trigger.tick(job)
	assert.Len(t, runs, 2)
}

func TestWideCheckIntervalWidensWindow(t *testing.T) {
	t.Parallel()

	trigger := newYorkTrigger(t, 5*time.Minute)
	loc := trigger.cfg.Location

	assert.True(t, trigger.shouldFire(time.Date(2025, 12, 9, 13, 34, 0, 0, loc)))
	assert.False(t, trigger.shouldFire(time.Date(2025, 12, 9, 13, 35, 0, 0, loc)))
}

func TestStartRunsOnStartupAndStops(t *testing.T) {
	t.Parallel()

	trigger := NewDailyTrigger(DailyConfig{
		Location:      time.UTC,
		Hour:          3,
		Minute:        0,
		CheckInterval: time.Hour,
		RunOnStartup:  true,
	}, nil).WithClock(func() time.Time {
		return time.Date(2025, 12, 9, 12, 0, 0, 0, time.UTC)
	})

	var (
		mu   sync.Mutex
		runs int
	)
	fired := make(chan struct{}, 1)
	job := func(time.Time) {
		mu.Lock()
		runs++
		mu.Unlock()
		fired <- struct{}{}
	}

	require.NoError(t, trigger.Start(context.Background(), job))
	require.NoError(t, trigger.Start(context.Background(), job))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("startup run did not fire")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))
	require.NoError(t, trigger.Stop(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, runs)
}
