package workflow

import (
	"github.com/kaister3/silk/activity"
	"github.com/kaister3/silk/user"
)

// TaskID identifies one task node within a workflow definition.
type TaskID string

// TaskMonitor is the nested monitor a task execution reports through: its
// value cell holds the task's latest ExecutionReport.
type TaskMonitor = activity.Context[ExecutionReport]

// Dataset is an opaque handle to the data a task consumes or produces. How
// datasets are read and written belongs to the task executors behind the
// Registry, not to this package.
type Dataset interface {
	Name() string
}

// Schema describes the target shape of a task's output dataset.
type Schema interface {
	Name() string
}

// Project is the owning scope a workflow runs in, used by the definition to
// resolve its variable datasets and by task executors to resolve specs.
type Project interface {
	Name() string
}

// TaskSpec is the specification of one task, interpreted by the Registry.
type TaskSpec interface {
	// Identifier returns the task's id, unique within its workflow.
	Identifier() TaskID

	// InputCount returns the number of input slots the task declares. The
	// executor feeds exactly this many upstream outputs, in slot order.
	InputCount() int
}

// Node is one vertex of the workflow graph: a task plus its position in the
// topology. Ordering and cycle validation are the definition's business;
// the executor only reads the edges.
type Node interface {
	// Task returns the task specification to execute at this node.
	Task() TaskSpec

	// Upstream returns the ids of the nodes whose outputs feed this node's
	// input slots, in slot order.
	Upstream() []TaskID

	// OutputSchema returns the target schema for the node's output, or nil
	// when the node produces none (sinks).
	OutputSchema() Schema

	// VariableSource returns the placeholder id when this node is a
	// variable data source that must be bound to a caller-supplied dataset.
	VariableSource() (id string, ok bool)

	// VariableSink returns the placeholder id when this node is a variable
	// data sink.
	VariableSink() (id string, ok bool)
}

// Definition is the workflow being executed. It is external to this package:
// the executor reads the node set, the variable-dataset declarations, and the
// per-task progress contributions, and owns nothing else about it.
type Definition interface {
	// Name returns the workflow's display name.
	Name() string

	// Nodes returns all nodes of the graph.
	Nodes() []Node

	// VariableDatasets returns the placeholder ids the workflow declares as
	// variable data sources and sinks when run in the given project.
	VariableDatasets(p Project) (sources, sinks []string)

	// EffectiveContribution returns the share of overall workflow progress
	// the given task represents, derived from the topology. A non-positive
	// return means the definition declares no share and the task gets an
	// equal split of the remainder.
	EffectiveContribution(id TaskID) float64
}

// Registry dispatches a task specification to its executor implementation.
// ExecuteTask must be safe to call concurrently for independent tasks of the
// same workflow run. Executors report progress through the monitor's value
// cell and must watch monitor.Context() for cancellation.
type Registry interface {
	ExecuteTask(task TaskSpec, inputs []Dataset, outputSchema Schema, u user.Context, monitor *TaskMonitor) (Dataset, error)
}
