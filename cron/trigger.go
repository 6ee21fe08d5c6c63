// Package cron starts workflow runs on cron schedules.
//
// A trigger specification names which registered workflows to start and
// when; the Manager owns one Trigger per specification and drives them until
// its context is cancelled:
//
//	mgr, err := cron.NewManager("linkage:0 2 * * *", runner, logger, registered)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mgr.Start(ctx)  // Returns immediately, runs in background
//	<-ctx.Done()    // Wait for shutdown signal
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec is returned when a cron expression cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

// Runnable starts runs of the named workflows. The runner implements this.
type Runnable interface {
	Run(workflows []string) error
}

// Trigger starts a fixed set of workflows according to one cron schedule.
type Trigger struct {
	spec      string
	schedule  cron.Schedule
	workflows []string
	runnable  Runnable
	logger    *slog.Logger
}

// NewTrigger creates a Trigger from a 5-field cron expression. Returns
// ErrInvalidCronSpec if the expression cannot be parsed.
func NewTrigger(spec string, workflows []string, runnable Runnable, logger *slog.Logger) (*Trigger, error) {
	schedule, err := specParser.Parse(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}

	return &Trigger{
		spec:      spec,
		schedule:  schedule,
		workflows: workflows,
		runnable:  runnable,
		logger:    logger.With("component", "cron"),
	}, nil
}

// Start launches the scheduling loop in a goroutine. Returns immediately;
// the goroutine exits when ctx is cancelled.
func (t *Trigger) Start(ctx context.Context) {
	go t.loop(ctx)
}

// NextRun returns the next scheduled run time from now.
func (t *Trigger) NextRun() time.Time {
	return t.schedule.Next(time.Now())
}

func (t *Trigger) loop(ctx context.Context) {
	for {
		nextRun := t.schedule.Next(time.Now())
		wait := time.Until(nextRun)

		t.logger.Debug("waiting for next scheduled run",
			"workflows", t.workflows,
			"next_run", nextRun,
			"wait_duration", wait,
		)

		select {
		case <-ctx.Done():
			t.logger.Info("cron trigger shutting down", "workflows", t.workflows)
			return
		case <-time.After(wait):
			t.fire()
		}
	}
}

func (t *Trigger) fire() {
	t.logger.Info("starting scheduled workflow runs", "workflows", t.workflows)

	if err := t.runnable.Run(t.workflows); err != nil {
		t.logger.Warn("scheduled run completed with error", "workflows", t.workflows, "error", err)
	} else {
		t.logger.Info("scheduled run completed", "workflows", t.workflows)
	}
}
