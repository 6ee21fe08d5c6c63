package workflow

import (
	"sync"
	"time"

	"github.com/kaister3/silk/user"
)

// Shared fixtures for the package tests: in-memory collaborator
// implementations just rich enough to drive the executor.

type memDataset struct{ name string }

func (d memDataset) Name() string { return d.name }

type memSchema struct{ name string }

func (s memSchema) Name() string { return s.name }

type memProject struct{ name string }

func (p memProject) Name() string { return p.name }

type memTask struct {
	id     TaskID
	inputs int
}

func (t memTask) Identifier() TaskID { return t.id }
func (t memTask) InputCount() int    { return t.inputs }

type memNode struct {
	task      memTask
	upstream  []TaskID
	schema    Schema
	varSource string
	varSink   string
}

func (n memNode) Task() TaskSpec     { return n.task }
func (n memNode) Upstream() []TaskID { return n.upstream }
func (n memNode) OutputSchema() Schema {
	return n.schema
}
func (n memNode) VariableSource() (string, bool) { return n.varSource, n.varSource != "" }
func (n memNode) VariableSink() (string, bool)   { return n.varSink, n.varSink != "" }

type memDefinition struct {
	name    string
	nodes   []Node
	sources []string
	sinks   []string
	weights map[TaskID]float64
}

func (d memDefinition) Name() string  { return d.name }
func (d memDefinition) Nodes() []Node { return d.nodes }
func (d memDefinition) VariableDatasets(Project) (sources, sinks []string) {
	return d.sources, d.sinks
}
func (d memDefinition) EffectiveContribution(id TaskID) float64 {
	return d.weights[id]
}

// transform builds a non-variable node with one input slot per upstream id.
func transform(id TaskID, upstream ...TaskID) memNode {
	return memNode{
		task:     memTask{id: id, inputs: len(upstream)},
		upstream: upstream,
		schema:   memSchema{name: string(id) + "-schema"},
	}
}

// source builds a variable data-source node bound to the given placeholder.
func source(id TaskID, placeholder string) memNode {
	return memNode{
		task:      memTask{id: id},
		schema:    memSchema{name: string(id) + "-schema"},
		varSource: placeholder,
	}
}

// sink builds a variable data-sink node.
func sink(id TaskID, placeholder string, upstream ...TaskID) memNode {
	return memNode{
		task:     memTask{id: id, inputs: len(upstream)},
		upstream: upstream,
		varSink:  placeholder,
	}
}

// recordingRegistry executes tasks in memory, recording the calls. Optional
// per-task failures and delays drive the failure-policy and ordering tests.
type recordingRegistry struct {
	mu       sync.Mutex
	executed []TaskID
	inputs   map[TaskID][]Dataset
	users    map[TaskID]user.Context

	fail   map[TaskID]error
	delays map[TaskID]time.Duration
}

func newRecordingRegistry() *recordingRegistry {
	return &recordingRegistry{
		inputs: make(map[TaskID][]Dataset),
		users:  make(map[TaskID]user.Context),
		fail:   make(map[TaskID]error),
		delays: make(map[TaskID]time.Duration),
	}
}

func (r *recordingRegistry) ExecuteTask(task TaskSpec, inputs []Dataset, outputSchema Schema, u user.Context, monitor *TaskMonitor) (Dataset, error) {
	id := task.Identifier()
	if delay := r.delays[id]; delay > 0 {
		time.Sleep(delay)
	}

	r.mu.Lock()
	r.executed = append(r.executed, id)
	r.inputs[id] = inputs
	r.users[id] = u
	err := r.fail[id]
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	monitor.Value().Set(Report{Message: "done " + string(id), Progress: 1, Done: true})
	return memDataset{name: string(id) + "-out"}, nil
}

func (r *recordingRegistry) executedIDs() []TaskID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TaskID(nil), r.executed...)
}
