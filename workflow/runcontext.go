package workflow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kaister3/silk/activity"
	"github.com/kaister3/silk/user"
)

// ErrDuplicateTask is returned when a task context is requested twice for the
// same task within one run. Two contexts would double-subscribe the task's
// reports into the aggregate, so this is treated as a topology bug and fails
// loudly.
var ErrDuplicateTask = errors.New("task context already created for this run")

// RunContext is the per-run state shared by all task executions of one
// workflow run: the top-level monitor whose value cell holds the aggregated
// WorkflowReport, the set of nodes already executed, and the subscriptions
// that wire each task's reports into the aggregate.
//
// The run context owns its subscriptions. Close tears them down; after Close
// no further task reports reach the aggregate.
type RunContext struct {
	parent     *activity.Context[WorkflowReport]
	definition Definition
	usr        user.Context

	mu       sync.Mutex
	executed map[TaskID]struct{}
	wired    map[TaskID]struct{}
	unsubs   []func()
	closed   bool
}

// NewRunContext creates the shared state for one workflow run reporting into
// the given top-level monitor.
func NewRunContext(parent *activity.Context[WorkflowReport], definition Definition, u user.Context) *RunContext {
	return &RunContext{
		parent:     parent,
		definition: definition,
		usr:        u,
		executed:   make(map[TaskID]struct{}),
		wired:      make(map[TaskID]struct{}),
	}
}

// User returns the user context the run executes under.
func (rc *RunContext) User() user.Context {
	return rc.usr
}

// Definition returns the workflow definition being run.
func (rc *RunContext) Definition() Definition {
	return rc.definition
}

// Report returns the current aggregated report.
func (rc *RunContext) Report() WorkflowReport {
	return rc.parent.Value().Get()
}

// MarkExecuted records that the given node is being executed. It returns
// false if the node was already recorded; the executed set only grows during
// a run, so a node reached through two graph paths runs at most once.
func (rc *RunContext) MarkExecuted(id TaskID) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if _, ok := rc.executed[id]; ok {
		return false
	}
	rc.executed[id] = struct{}{}
	return true
}

// AlreadyExecuted reports whether the given node has been recorded as
// executed in this run.
func (rc *RunContext) AlreadyExecuted(id TaskID) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	_, ok := rc.executed[id]
	return ok
}

// TaskContext creates the nested monitor for one task execution and wires its
// report cell into the aggregate: every update of the task's report applies
// WithReport to the top-level cell atomically, so concurrent updates from
// sibling tasks serialize on the cell's lock and none is lost. Per-task
// update order is preserved because the wiring fires synchronously with the
// task's own update.
//
// At most one call per task id per run; a second call returns
// ErrDuplicateTask.
func (rc *RunContext) TaskContext(id TaskID) (*TaskMonitor, error) {
	rc.mu.Lock()
	if rc.closed {
		rc.mu.Unlock()
		return nil, fmt.Errorf("run context closed: task %s", id)
	}
	if _, ok := rc.wired[id]; ok {
		rc.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, id)
	}
	rc.wired[id] = struct{}{}
	rc.mu.Unlock()

	weight := rc.definition.EffectiveContribution(id)
	monitor := activity.NewChild[ExecutionReport](rc.parent, string(id), Report{}, weight)

	unsub := monitor.Value().Subscribe(func(report ExecutionReport) {
		rc.parent.Value().Update(func(w WorkflowReport) WorkflowReport {
			return w.WithReport(id, report)
		})
	})

	rc.mu.Lock()
	rc.unsubs = append(rc.unsubs, unsub)
	rc.mu.Unlock()

	return monitor, nil
}

// Close removes all report subscriptions. Idempotent.
func (rc *RunContext) Close() {
	rc.mu.Lock()
	unsubs := rc.unsubs
	rc.unsubs = nil
	rc.closed = true
	rc.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}
