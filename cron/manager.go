package cron

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Manager owns one Trigger per parsed trigger specification.
type Manager struct {
	triggers []*Trigger
	logger   *slog.Logger
}

// NewManager parses a multi-trigger specification and creates a Trigger for
// each entry. The registered map names the workflows the runnable knows;
// referencing any other workflow is a configuration error.
func NewManager(spec string, runnable Runnable, logger *slog.Logger, registered map[string]bool) (*Manager, error) {
	triggerSpecs, err := ParseTriggerSpecs(spec, registered)
	if err != nil {
		return nil, err
	}

	triggers := make([]*Trigger, 0, len(triggerSpecs))
	for _, ts := range triggerSpecs {
		trigger, err := NewTrigger(ts.CronSpec, ts.Workflows, runnable, logger)
		if err != nil {
			return nil, fmt.Errorf("creating trigger for '%s:%s': %w",
				strings.Join(ts.Workflows, ","), ts.CronSpec, err)
		}
		triggers = append(triggers, trigger)
	}

	logger.Info("cron trigger manager created", "trigger_count", len(triggers))
	for i, trigger := range triggers {
		logger.Info("trigger registered",
			"index", i,
			"workflows", triggerSpecs[i].Workflows,
			"schedule", triggerSpecs[i].CronSpec,
			"next_run", trigger.NextRun(),
		)
	}

	return &Manager{triggers: triggers, logger: logger}, nil
}

// Start launches all triggers, each in its own goroutine. Returns
// immediately; the goroutines exit when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	for _, trigger := range m.triggers {
		trigger.Start(ctx)
	}
}

// NextRun returns the earliest scheduled run time across all triggers, or
// the zero time when there are none.
func (m *Manager) NextRun() time.Time {
	if len(m.triggers) == 0 {
		return time.Time{}
	}

	earliest := m.triggers[0].NextRun()
	for _, trigger := range m.triggers[1:] {
		if next := trigger.NextRun(); next.Before(earliest) {
			earliest = next
		}
	}
	return earliest
}
