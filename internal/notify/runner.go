package notify

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc/pool"

	"smartcal/internal/holiday"
	appLog "smartcal/internal/log"
	"smartcal/internal/model"
)

// SettingsSource yields per-owner notification settings, creating the
// defaults on first use.
type SettingsSource interface {
	GetOrCreate(ctx context.Context, owner string) (model.NotificationSettings, error)
	Owners(ctx context.Context) ([]string, error)
}

// EventSource is the read side of the event store.
type EventSource interface {
	Events(ctx context.Context, owner string) ([]model.Event, error)
	Subscribe(ctx context.Context, owner string) (<-chan []model.Event, error)
}

// DedupStore is what the runner needs from the dedup records.
type DedupStore interface {
	For(owner string) DedupMarker
	Prune(ctx context.Context, today model.Date, retentionDays int) int
}

// Runner wires Evaluate to the stores and a Sink.
type Runner struct {
	settings SettingsSource
	events   EventSource
	dedup    DedupStore
	sink     Sink

	loc       *time.Location
	now       func() time.Time
	workers   int
	retention int
}

type RunnerOption func(*Runner)

func WithLocation(loc *time.Location) RunnerOption {
	return func(r *Runner) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithRetention sets how many days of dedup records a cron pass keeps.
func WithRetention(days int) RunnerOption {
	return func(r *Runner) { r.retention = days }
}

func NewRunner(settings SettingsSource, events EventSource, dedup DedupStore, sink Sink, opts ...RunnerOption) *Runner {
	r := &Runner{
		settings:  settings,
		events:    events,
		dedup:     dedup,
		sink:      sink,
		loc:       time.Local,
		now:       time.Now,
		workers:   4,
		retention: 30,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Today is the current local date in the runner's location.
func (r *Runner) Today() model.Date {
	return model.DateOf(r.now().In(r.loc))
}

func (r *Runner) Sink() Sink { return r.sink }

// RunOnce evaluates and, if due, delivers the notification for owner. The
// returned request is nil when nothing was sent.
func (r *Runner) RunOnce(ctx context.Context, owner string, today model.Date) (*Request, error) {
	events, err := r.events.Events(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("notify: list events for %s: %w", owner, err)
	}
	return r.run(ctx, owner, today, events)
}

func (r *Runner) run(ctx context.Context, owner string, today model.Date, events []model.Event) (*Request, error) {
	s, err := r.settings.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("notify: load settings for %s: %w", owner, err)
	}

	target := today
	if s.AdvanceDays > 0 {
		target = today.AddDays(s.AdvanceDays)
	}

	dedup := r.dedup.For(owner)
	req, err := Evaluate(Input{
		Today:      today,
		Settings:   s,
		Permission: r.sink.PermissionStatus(ctx),
		Personal:   events,
		Holidays:   holiday.ForYear(target.Year()),
		Dedup:      dedup,
	})
	if err != nil || req == nil {
		return nil, err
	}

	if err := r.sink.Dispatch(ctx, req.Title, req.Body); err != nil {
		return nil, fmt.Errorf("notify: dispatch for %s: %w", owner, err)
	}
	// A failed mark only risks a duplicate on the next pass.
	if err := dedup.MarkNotified(req.DedupKey); err != nil {
		appLog.Error("failed to mark notification as sent", err, "owner", owner, "key", req.DedupKey)
	}
	appLog.Info("notification sent", "owner", owner, "target", req.TargetDate.String(), "events", len(req.Events))
	return req, nil
}

// RunAll runs one pass for every known owner and returns how many
// notifications were sent. Errors from individual owners are joined.
func (r *Runner) RunAll(ctx context.Context, today model.Date) (int, error) {
	owners, err := r.settings.Owners(ctx)
	if err != nil {
		return 0, fmt.Errorf("notify: list owners: %w", err)
	}

	var sent atomic.Int64
	p := pool.New().WithMaxGoroutines(r.workers).WithContext(ctx)
	for _, owner := range owners {
		p.Go(func(ctx context.Context) error {
			req, err := r.RunOnce(ctx, owner, today)
			if err != nil {
				appLog.Error("notification pass failed", err, "owner", owner)
				return err
			}
			if req != nil {
				sent.Add(1)
			}
			return nil
		})
	}
	err = p.Wait()
	return int(sent.Load()), err
}

// Pass is one scheduled run: prune stale dedup records, then RunAll.
func (r *Runner) Pass(ctx context.Context) {
	today := r.Today()
	if n := r.dedup.Prune(ctx, today, r.retention); n > 0 {
		appLog.Info("pruned dedup records", "count", n)
	}
	sent, err := r.RunAll(ctx, today)
	if err != nil {
		appLog.Error("scheduled notification pass finished with errors", err, "sent", sent)
		return
	}
	appLog.Info("scheduled notification pass finished", "sent", sent, "today", today.String())
}

// Start schedules Pass on a cron spec until ctx is done.
func (r *Runner) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLocation(r.loc))
	if _, err := c.AddFunc(spec, func() { r.Pass(ctx) }); err != nil {
		return fmt.Errorf("notify: bad cron spec %q: %w", spec, err)
	}
	c.Start()
	appLog.Info("notification scheduler started", "cron", spec, "tz", r.loc.String())

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("notification scheduler stopped")
	}()
	return nil
}

// Watch re-evaluates owner's notification on every event snapshot until
// ctx is done.
func (r *Runner) Watch(ctx context.Context, owner string) error {
	ch, err := r.events.Subscribe(ctx, owner)
	if err != nil {
		return err
	}
	for snapshot := range ch {
		if _, err := r.run(ctx, owner, r.Today(), snapshot); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			appLog.Error("notification check failed", err, "owner", owner)
		}
	}
	return nil
}
