// Package schedule triggers harness runs on a cron schedule.
//
// Example usage:
//
//	trigger, err := schedule.NewTrigger("0 2 * * *", run, logger)
//	if err != nil {
//	    return err
//	}
//	trigger.Run(ctx) // blocks until ctx is cancelled
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec is returned when the cron specification cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

// Func is one scheduled unit of work.
type Func func(ctx context.Context) error

// Trigger calls a Func according to a cron schedule. Runs never overlap:
// a run that overruns its slot delays the next one.
type Trigger struct {
	spec     string
	schedule cron.Schedule
	fn       Func
	logger   *slog.Logger
	now      func() time.Time
}

// NewTrigger parses spec (5 fields: minute, hour, day, month, weekday, or
// a descriptor such as "@hourly" or "@every 10m").
func NewTrigger(spec string, fn Func, logger *slog.Logger) (*Trigger, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}
	return &Trigger{
		spec:     spec,
		schedule: sched,
		fn:       fn,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Spec returns the schedule expression.
func (t *Trigger) Spec() string {
	return t.spec
}

// NextRun returns the next scheduled run time from now.
func (t *Trigger) NextRun() time.Time {
	return t.schedule.Next(t.now())
}

// Run triggers fn on schedule until ctx is cancelled. It returns the
// number of completed runs.
func (t *Trigger) Run(ctx context.Context) int {
	runs := 0
	for {
		next := t.schedule.Next(t.now())
		wait := next.Sub(t.now())

		t.logger.Debug("waiting for next scheduled run", "next_run", next, "wait_duration", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.logger.Info("schedule shutting down", "runs", runs)
			return runs
		case <-timer.C:
		}

		t.logger.Info("starting scheduled run", "spec", t.spec)
		if err := t.fn(ctx); err != nil {
			t.logger.Warn("scheduled run completed with error", "error", err)
		} else {
			t.logger.Info("scheduled run completed successfully")
		}
		runs++
	}
}
