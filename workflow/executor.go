package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kaister3/silk/activity"
	"github.com/kaister3/silk/user"
)

// ErrUncoveredDataset is returned by CheckVariableDatasets when the workflow
// declares variable datasets the caller supplied no replacement for.
var ErrUncoveredDataset = errors.New("uncovered variable dataset")

// ErrRunFailed is returned by Run when one or more tasks failed or were
// skipped because an upstream task failed.
var ErrRunFailed = errors.New("workflow run failed")

// Executor runs a workflow's task graph. It is itself an activity producing
// a WorkflowReport, so it is started, cancelled, and observed through an
// activity.Control like any other unit of work.
//
// Each node executes on its own goroutine once all its upstream nodes have
// completed successfully; a failed upstream skips the dependent subgraph
// while disjoint branches keep running. The outcome of every node, including
// skips, is recorded - a failure is never swallowed.
type Executor struct {
	definition Definition
	project    Project
	registry   Registry
	sources    map[string]Dataset
	sinks      map[string]Dataset
	usr        user.Context
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithDataSources supplies the replacement datasets for the workflow's
// variable data sources, keyed by placeholder id.
func WithDataSources(sources map[string]Dataset) ExecutorOption {
	return func(e *Executor) { e.sources = sources }
}

// WithSinks supplies the replacement datasets for the workflow's variable
// data sinks, keyed by placeholder id.
func WithSinks(sinks map[string]Dataset) ExecutorOption {
	return func(e *Executor) { e.sinks = sinks }
}

// WithUser sets the user context the run executes under. Defaults to
// user.Empty.
func WithUser(u user.Context) ExecutorOption {
	return func(e *Executor) { e.usr = u }
}

// NewExecutor creates an executor for one workflow definition within a
// project, dispatching tasks through the given registry.
func NewExecutor(definition Definition, project Project, registry Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		definition: definition,
		project:    project,
		registry:   registry,
		usr:        user.Empty,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name identifies the executor by the workflow it runs.
func (e *Executor) Name() string {
	return "Execute workflow " + e.definition.Name()
}

// Definition returns the workflow definition being run.
func (e *Executor) Definition() Definition {
	return e.definition
}

// Project returns the owning scope the run resolves task specs in.
func (e *Executor) Project() Project {
	return e.project
}

// CheckVariableDatasets verifies that every variable dataset the workflow
// declares has a caller-supplied replacement. It has no side effects. On
// failure the error enumerates every uncovered id, sources and sinks
// independently, so the caller can fix the whole binding in one round.
func (e *Executor) CheckVariableDatasets() error {
	sources, sinks := e.definition.VariableDatasets(e.project)

	missingSources := missingFrom(sources, e.sources)
	missingSinks := missingFrom(sinks, e.sinks)
	if len(missingSources) == 0 && len(missingSinks) == 0 {
		return nil
	}

	var parts []string
	if len(missingSources) > 0 {
		parts = append(parts, fmt.Sprintf("sources [%s]", strings.Join(missingSources, ", ")))
	}
	if len(missingSinks) > 0 {
		parts = append(parts, fmt.Sprintf("sinks [%s]", strings.Join(missingSinks, ", ")))
	}
	return fmt.Errorf("%w: %s", ErrUncoveredDataset, strings.Join(parts, ", "))
}

func missingFrom(declared []string, supplied map[string]Dataset) []string {
	var missing []string
	for _, id := range declared {
		if _, ok := supplied[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}

// nodeResult is the recorded outcome of one node.
type nodeResult struct {
	dataset Dataset
	err     error
	skipped bool
}

// Run validates the variable-dataset bindings, then executes the graph. It
// returns once every runnable branch has finished, so the aggregated report
// in the monitor's value cell is complete when Run returns. The returned
// error lists the failed and skipped tasks, if any.
func (e *Executor) Run(ctx *activity.Context[WorkflowReport]) error {
	if err := e.CheckVariableDatasets(); err != nil {
		return err
	}

	u := e.usr.WithExecution(user.Execution{InsideWorkflow: true})
	run := NewRunContext(ctx, e.definition, u)
	defer run.Close()

	nodes := e.definition.Nodes()
	if len(nodes) == 0 {
		return nil
	}
	ctx.Logger().Info("workflow started", "workflow", e.definition.Name(), "nodes", len(nodes))

	// One completion channel per node, closed when its result is recorded.
	// Downstream nodes wait on their upstream channels.
	completion := make(map[TaskID]chan struct{}, len(nodes))
	for _, node := range nodes {
		completion[node.Task().Identifier()] = make(chan struct{})
	}

	var mu sync.Mutex
	results := make(map[TaskID]*nodeResult, len(nodes))

	var wg sync.WaitGroup
	for _, node := range nodes {
		wg.Add(1)
		go func(node Node) {
			defer wg.Done()
			e.runNode(ctx, run, node, completion, &mu, results)
		}(node)
	}
	wg.Wait()

	return e.outcome(ctx, nodes, results)
}

// runNode waits for the node's upstream results, then executes it and
// records the outcome. The completion channel is closed in every path so
// downstream waiters never hang.
func (e *Executor) runNode(ctx *activity.Context[WorkflowReport], run *RunContext, node Node,
	completion map[TaskID]chan struct{}, mu *sync.Mutex, results map[TaskID]*nodeResult) {

	id := node.Task().Identifier()
	record := func(r *nodeResult) {
		mu.Lock()
		results[id] = r
		mu.Unlock()
		close(completion[id])
	}

	inputs := make([]Dataset, 0, len(node.Upstream()))
	for _, upstream := range node.Upstream() {
		select {
		case <-ctx.Context().Done():
			ctx.Logger().Warn("task cancelled before start", "task", id)
			record(&nodeResult{err: fmt.Errorf("cancelled: %w", ctx.Context().Err()), skipped: true})
			return
		case <-completion[upstream]:
			mu.Lock()
			upResult := results[upstream]
			mu.Unlock()

			if upResult.err != nil {
				ctx.Logger().Warn("task skipped", "task", id, "failed_upstream", upstream)
				record(&nodeResult{
					err:     fmt.Errorf("upstream %s failed: %w", upstream, upResult.err),
					skipped: true,
				})
				return
			}
			inputs = append(inputs, upResult.dataset)
		}
	}

	select {
	case <-ctx.Context().Done():
		ctx.Logger().Warn("task cancelled before start", "task", id)
		record(&nodeResult{err: fmt.Errorf("cancelled: %w", ctx.Context().Err()), skipped: true})
		return
	default:
	}

	dataset, err := e.ExecuteNode(run, node, inputs, node.OutputSchema())
	record(&nodeResult{dataset: dataset, err: err})
}

// ExecuteNode executes one node under a fresh task monitor: it feeds the
// already-computed upstream outputs to the registry and returns the task's
// output, or nil for sinks. A variable data source is not dispatched at all;
// its output is the caller-supplied replacement dataset.
//
// The number of inputs must match the task's declared input slots; a
// mismatch is a programming error in the topology, not a runtime condition.
func (e *Executor) ExecuteNode(run *RunContext, node Node, inputs []Dataset, outputSchema Schema) (Dataset, error) {
	task := node.Task()
	id := task.Identifier()

	if want := task.InputCount(); len(inputs) != want {
		return nil, fmt.Errorf("task %s expects %d inputs, got %d", id, want, len(inputs))
	}
	if !run.MarkExecuted(id) {
		return nil, fmt.Errorf("%w: node %s re-entered", ErrDuplicateTask, id)
	}

	monitor, err := run.TaskContext(id)
	if err != nil {
		return nil, err
	}

	if srcID, ok := node.VariableSource(); ok {
		dataset := e.sources[srcID]
		if dataset == nil {
			err := fmt.Errorf("%w: source %s", ErrUncoveredDataset, srcID)
			monitor.Value().Set(Report{Message: "no dataset bound", Failure: err, Done: true})
			monitor.Finish(err)
			return nil, err
		}
		monitor.Value().Set(Report{
			Message:  fmt.Sprintf("bound dataset %s", dataset.Name()),
			Progress: 1,
			Done:     true,
		})
		monitor.Finish(nil)
		return dataset, nil
	}

	monitor.Logger().Info("task started")
	dataset, err := e.registry.ExecuteTask(task, inputs, outputSchema, run.User(), monitor)

	// The terminal report is recorded before the error surfaces, so the
	// aggregate always carries the failure even if the caller drops the
	// returned error. A report the registry already finalized is kept as is.
	monitor.Value().Update(func(r ExecutionReport) ExecutionReport {
		if err == nil && r.Finished() {
			return r
		}
		final := Report{Message: r.Summary(), Failure: err, Done: true}
		if err == nil {
			final.Progress = 1
		}
		return final
	})
	monitor.Finish(err)

	if err != nil {
		monitor.Logger().Error("task failed", "error", err)
		return nil, err
	}
	if _, ok := node.VariableSink(); ok || outputSchema == nil {
		// Sinks produce no dataset for downstream consumption.
		return nil, nil
	}
	return dataset, nil
}

// outcome turns the recorded node results into the run's return value:
// nil when everything succeeded, otherwise an error listing the failed and
// skipped tasks in definition order.
func (e *Executor) outcome(ctx *activity.Context[WorkflowReport], nodes []Node, results map[TaskID]*nodeResult) error {
	var failed, skipped []string
	for _, node := range nodes {
		id := node.Task().Identifier()
		result := results[id]
		switch {
		case result == nil:
			// Unreachable: every goroutine records a result.
			skipped = append(skipped, string(id))
		case result.skipped:
			skipped = append(skipped, string(id))
		case result.err != nil:
			failed = append(failed, string(id))
		}
	}

	if len(failed) == 0 && len(skipped) == 0 {
		ctx.Logger().Info("workflow finished", "workflow", e.definition.Name())
		return nil
	}

	var parts []string
	if len(failed) > 0 {
		parts = append(parts, fmt.Sprintf("failed [%s]", strings.Join(failed, ", ")))
	}
	if len(skipped) > 0 {
		parts = append(parts, fmt.Sprintf("skipped [%s]", strings.Join(skipped, ", ")))
	}
	ctx.Logger().Error("workflow finished with failures",
		"workflow", e.definition.Name(), "failed", len(failed), "skipped", len(skipped))
	return fmt.Errorf("%w: %s", ErrRunFailed, strings.Join(parts, ", "))
}
