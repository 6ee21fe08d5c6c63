// Package runner manages workflow run execution.
//
// The runner owns a set of registered, named workflow factories and handles:
//   - Starting runs in the background on the shared worker pool
//   - Preventing concurrent runs of the same workflow
//   - Tracking live run status, aggregated reports, and captured logs
//   - Maintaining a history of completed runs
//
// Each run executes a fresh workflow instance created from the registered
// factory, so run-scoped state never leaks between runs.
//
// # Example
//
//	r := runner.New(logger)
//	r.Register("linkage", func() activity.Activity[workflow.WorkflowReport] {
//	    return workflow.NewExecutor(def, project, registry)
//	})
//
//	if err := r.Run([]string{"linkage"}); err != nil {
//	    if errors.Is(err, runner.ErrRunInProgress) {
//	        // Handle concurrent run attempt
//	    }
//	}
//
//	status, _ := r.Status("linkage")
//	for _, id := range status.Report.Tasks() {
//	    report, _ := status.Report.Report(id)
//	    fmt.Printf("%s: %s\n", id, report.Summary())
//	}
//
//	history := r.History() // Most recent first
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kaister3/silk/activity"
	"github.com/kaister3/silk/logging"
	"github.com/kaister3/silk/metrics"
	"github.com/kaister3/silk/pool"
	"github.com/kaister3/silk/user"
	"github.com/kaister3/silk/workflow"
)

// ErrRunInProgress is returned when starting a workflow that already has a
// run in flight.
var ErrRunInProgress = errors.New("workflow run already in progress")

// ErrUnknownWorkflow is returned when naming a workflow that was never
// registered.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// Factory creates a fresh workflow activity for one run.
type Factory func() activity.Activity[workflow.WorkflowReport]

// Runner manages the runs of registered workflows.
type Runner struct {
	logger    *slog.Logger
	pool      *pool.Pool
	store     Store
	recorder  *metrics.Recorder
	collector *logging.Collector

	mu      sync.Mutex
	entries map[string]*entry
}

// entry is one registered workflow and its live run bookkeeping.
type entry struct {
	name      string
	ctl       *activity.Control[workflow.WorkflowReport]
	runID     string
	startedAt time.Time

	// recording is true from start until the run's history record is saved.
	// While set, the control's terminal state and the captured logs still
	// belong to that run, so a new run must not begin.
	recording bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithPool sets the worker pool runs execute on. Defaults to the
// process-wide shared pool.
func WithPool(p *pool.Pool) Option {
	return func(r *Runner) { r.pool = p }
}

// WithStore sets the run-history store. Defaults to an in-memory store.
func WithStore(store Store) Option {
	return func(r *Runner) { r.store = store }
}

// WithRecorder enables per-run metrics recording.
func WithRecorder(recorder *metrics.Recorder) Option {
	return func(r *Runner) { r.recorder = recorder }
}

// New creates a Runner.
func New(logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		logger:    logger.With("component", "runner"),
		store:     NewMemoryStore(0),
		collector: logging.NewCollector(),
		entries:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.pool == nil {
		r.pool = pool.Default()
	}
	return r
}

// Register adds a named workflow. The factory is wrapped in a regenerating
// activity, so every run gets a fresh instance. Registering the same name
// twice is an error.
func (r *Runner) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("workflow %q already registered", name)
	}

	ctl := activity.NewControl[workflow.WorkflowReport](
		activity.NewRegenerating(factory),
		activity.WithPool(r.pool),
		activity.WithLogger(r.collector.Logger(r.logger, name)),
		activity.WithName(name),
	)
	r.entries[name] = &entry{name: name, ctl: ctl}
	r.logger.Info("workflow registered", "workflow", name)
	return nil
}

// Workflows returns the registered workflow names, sorted.
func (r *Runner) Workflows() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registered returns the registered workflow names as a set, in the shape
// the cron trigger parser validates against.
func (r *Runner) Registered() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := make(map[string]bool, len(r.entries))
	for name := range r.entries {
		set[name] = true
	}
	return set
}

// Run starts a background run of each named workflow as the system user.
// Workflows already running or not registered are reported in the returned
// error; the remaining ones still start. Implements the cron scheduler's
// Runnable.
func (r *Runner) Run(names []string) error {
	var errs []error
	for _, name := range names {
		if _, err := r.Start(name, user.Empty); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start begins a background run of one workflow on behalf of the given user
// and returns the run id. Returns ErrUnknownWorkflow or ErrRunInProgress.
func (r *Runner) Start(name string, u user.Context) (string, error) {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}
	if e.ctl.Running() || e.recording {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrRunInProgress, name)
	}

	runID := uuid.NewString()
	startedAt := time.Now()
	e.runID = runID
	e.startedAt = startedAt
	e.recording = true
	// History already holds the previous run's logs; clear the live buffer.
	r.collector.Drop(name)
	r.mu.Unlock()

	if err := e.ctl.Start(u); err != nil {
		r.mu.Lock()
		e.recording = false
		r.mu.Unlock()
		if errors.Is(err, activity.ErrAlreadyRunning) {
			return "", fmt.Errorf("%w: %s", ErrRunInProgress, name)
		}
		return "", err
	}

	r.logger.Info("workflow run started", "workflow", name, "run_id", runID, "user", u.LogValue())
	if r.recorder != nil {
		r.recorder.RunStarted(name)
	}
	go r.awaitCompletion(e, runID, startedAt)
	return runID, nil
}

// Cancel requests cancellation of the named workflow's in-flight run.
// Cancelling an idle workflow is a no-op.
func (r *Runner) Cancel(name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}
	e.ctl.Cancel()
	return nil
}

// Wait blocks until the named workflow's in-flight run finishes or ctx is
// done. Returns immediately when no run is in flight.
func (r *Runner) Wait(ctx context.Context, name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}
	return e.ctl.Wait(ctx)
}

// IsRunning reports whether the named workflow has a run in flight.
func (r *Runner) IsRunning(name string) bool {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	return ok && e.ctl.Running()
}

// Status is a snapshot of one workflow's current or last run.
type Status struct {
	// Workflow is the registered workflow name.
	Workflow string `json:"workflow"`
	// RunID identifies the current run. Empty when no run has started yet.
	RunID string `json:"run_id,omitempty"`
	// Running is true while a run is in flight.
	Running bool `json:"running"`
	// StartedAt is when the current or last run started. Nil before the
	// first run.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// Activity is the lifecycle status of the run.
	Activity activity.Status `json:"activity"`
	// Report is the live aggregated execution report.
	Report workflow.WorkflowReport `json:"-"`
	// Logs are the records captured during the current or last run.
	Logs []logging.Entry `json:"logs,omitempty"`
}

// Status returns a snapshot of the named workflow's current or last run,
// including the live aggregated report and captured logs.
func (r *Runner) Status(name string) (Status, error) {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		r.mu.Unlock()
		return Status{}, fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}
	runID := e.runID
	startedAt := e.startedAt
	r.mu.Unlock()

	status := Status{
		Workflow: name,
		RunID:    runID,
		Running:  e.ctl.Running(),
		Activity: e.ctl.Status(),
		Report:   e.ctl.Value(),
		Logs:     r.collector.Logs(name),
	}
	if !startedAt.IsZero() {
		status.StartedAt = &startedAt
	}
	return status, nil
}

// History returns the completed runs across all workflows, most recent
// first.
func (r *Runner) History() []Record {
	return r.store.Runs()
}

// awaitCompletion blocks until the entry's run finishes, then records the
// outcome in metrics and history. The run's identity travels as arguments,
// and the entry's recording flag keeps the control state and captured logs
// owned by this run until the record is saved.
func (r *Runner) awaitCompletion(e *entry, runID string, startedAt time.Time) {
	// Completion is the only exit; the background context never fires.
	_ = e.ctl.Wait(context.Background())
	endedAt := time.Now()
	runErr := e.ctl.LastError()

	record := Record{
		ID:        runID,
		Workflow:  e.name,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		Report:    e.ctl.Value(),
		Logs:      r.collector.Logs(e.name),
	}
	if runErr != nil {
		record.Error = runErr.Error()
		r.logger.Error("workflow run failed",
			"workflow", e.name, "run_id", runID, "error", runErr, "duration", endedAt.Sub(startedAt))
	} else {
		r.logger.Info("workflow run completed",
			"workflow", e.name, "run_id", runID, "duration", endedAt.Sub(startedAt))
	}

	if r.recorder != nil {
		r.recorder.RunFinished(e.name, endedAt.Sub(startedAt), runErr)
	}
	if err := r.store.Save(record); err != nil {
		r.logger.Error("failed to save run to store", "run_id", runID, "error", err)
	}

	r.mu.Lock()
	e.recording = false
	r.mu.Unlock()
}
