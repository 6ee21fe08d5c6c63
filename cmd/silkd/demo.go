package main

import (
	"fmt"
	"time"

	"github.com/kaister3/silk/user"
	"github.com/kaister3/silk/workflow"
)

// The demo workflow is a three-task pipeline (extract -> transform -> load)
// whose tasks simulate work with short sleeps and incremental progress
// updates. It exists so a fresh deployment has something to run and observe.

type demoDataset struct{ name string }

func (d demoDataset) Name() string { return d.name }

type demoSchema struct{ name string }

func (s demoSchema) Name() string { return s.name }

type demoProject struct{}

func (demoProject) Name() string { return "demo" }

type demoTask struct {
	id     workflow.TaskID
	inputs int
}

func (t demoTask) Identifier() workflow.TaskID { return t.id }
func (t demoTask) InputCount() int             { return t.inputs }

type demoNode struct {
	task     demoTask
	upstream []workflow.TaskID
	schema   workflow.Schema
}

func (n demoNode) Task() workflow.TaskSpec        { return n.task }
func (n demoNode) Upstream() []workflow.TaskID    { return n.upstream }
func (n demoNode) OutputSchema() workflow.Schema  { return n.schema }
func (n demoNode) VariableSource() (string, bool) { return "", false }
func (n demoNode) VariableSink() (string, bool)   { return "", false }

type demoDefinition struct{}

func (demoDefinition) Name() string { return "demo" }

func (demoDefinition) Nodes() []workflow.Node {
	return []workflow.Node{
		demoNode{task: demoTask{id: "extract"}, schema: demoSchema{name: "raw"}},
		demoNode{
			task:     demoTask{id: "transform", inputs: 1},
			upstream: []workflow.TaskID{"extract"},
			schema:   demoSchema{name: "clean"},
		},
		demoNode{
			task:     demoTask{id: "load", inputs: 1},
			upstream: []workflow.TaskID{"transform"},
		},
	}
}

func (demoDefinition) VariableDatasets(workflow.Project) (sources, sinks []string) {
	return nil, nil
}

func (demoDefinition) EffectiveContribution(workflow.TaskID) float64 {
	return 0 // equal split
}

// demoRegistry executes every task the same way: a few timed steps, each
// reporting progress, honouring cancellation between steps.
type demoRegistry struct {
	stepDelay time.Duration
}

func (r demoRegistry) ExecuteTask(task workflow.TaskSpec, inputs []workflow.Dataset, outputSchema workflow.Schema, u user.Context, monitor *workflow.TaskMonitor) (workflow.Dataset, error) {
	const steps = 4
	for i := 1; i <= steps; i++ {
		select {
		case <-monitor.Context().Done():
			return nil, monitor.Context().Err()
		case <-time.After(r.stepDelay):
		}
		monitor.Value().Set(workflow.Report{
			Message:  fmt.Sprintf("step %d of %d", i, steps),
			Progress: float64(i) / steps,
		})
		monitor.Logger().Debug("demo step finished", "step", i)
	}

	if outputSchema == nil {
		return nil, nil
	}
	return demoDataset{name: string(task.Identifier()) + " output"}, nil
}
