package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"NewsDigest/internal/ports"
)

const minFireWindow = time.Minute

// DailyConfig describes when the daily run fires.
type DailyConfig struct {
	Location      *time.Location
	Hour          int
	Minute        int
	CheckInterval time.Duration
	RunOnStartup  bool
}

// DailyTrigger polls the wall clock and fires the job once per local day.
type DailyTrigger struct {
	cfg    DailyConfig
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	lastRun string
}

var _ ports.Scheduler = (*DailyTrigger)(nil)

// NewDailyTrigger builds a trigger for the given local time of day.
func NewDailyTrigger(cfg DailyConfig, log *slog.Logger) *DailyTrigger {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &DailyTrigger{cfg: cfg, now: time.Now, logger: log}
}

// WithClock overrides the wall clock.
func (d *DailyTrigger) WithClock(now func() time.Time) *DailyTrigger {
	d.now = now
	return d
}

// Start launches the polling goroutine. A second Start is a no-op.
func (d *DailyTrigger) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	d.mu.Lock()
	if d.stop != nil {
		d.mu.Unlock()
		return nil
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	stop, done := d.stop, d.done
	d.mu.Unlock()

	d.logger.Info("daily trigger started",
		"at", d.targetOn(d.now()).Format("15:04 MST"),
		"check_interval", d.cfg.CheckInterval.String(),
		"run_on_startup", d.cfg.RunOnStartup,
	)

	go func() {
		defer close(done)
		ticker := time.NewTicker(d.cfg.CheckInterval)
		defer ticker.Stop()

		if d.cfg.RunOnStartup {
			job(d.now())
		}
		d.tick(job)
		for {
			select {
			case <-ticker.C:
				d.tick(job)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the polling goroutine and waits for an in-flight job to return.
func (d *DailyTrigger) Stop(ctx context.Context) error {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *DailyTrigger) tick(job func(time.Time)) {
	now := d.now().In(d.cfg.Location)
	if !d.shouldFire(now) {
		return
	}
	d.mu.Lock()
	d.lastRun = dayKey(now)
	d.mu.Unlock()
	job(now)
}

// shouldFire reports whether now falls inside today's firing window and the
// job has not already run on this local day.
func (d *DailyTrigger) shouldFire(now time.Time) bool {
	now = now.In(d.cfg.Location)

	d.mu.Lock()
	last := d.lastRun
	d.mu.Unlock()
	if last == dayKey(now) {
		return false
	}

	target := d.targetOn(now)
	window := max(d.cfg.CheckInterval, minFireWindow)
	return !now.Before(target) && now.Before(target.Add(window))
}

func (d *DailyTrigger) targetOn(now time.Time) time.Time {
	now = now.In(d.cfg.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), d.cfg.Hour, d.cfg.Minute, 0, 0, d.cfg.Location)
}

func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
