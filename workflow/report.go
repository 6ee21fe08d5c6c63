package workflow

import "sort"

// ExecutionReport is an immutable-by-replacement value describing one task
// execution's outcome and progress. Task executors may publish their own
// richer implementations; Report below is the one this package produces.
type ExecutionReport interface {
	// Summary returns a short human-readable description of the execution.
	Summary() string

	// Err returns the error the execution failed with, or nil.
	Err() error

	// Finished reports whether the execution has reached a terminal state.
	Finished() bool
}

// Report is the basic ExecutionReport implementation. The zero value is a
// valid "not started" report.
type Report struct {
	Message  string
	Progress float64
	Failure  error
	Done     bool
}

func (r Report) Summary() string { return r.Message }
func (r Report) Err() error      { return r.Failure }
func (r Report) Finished() bool  { return r.Done }

// WorkflowReport aggregates the latest ExecutionReport of every task that has
// started in one workflow run. It is immutable by replacement: WithReport
// returns a copy, so a value read from the top-level cell is a consistent
// snapshot that no concurrent update can tear. Keys are added or overwritten
// during a run, never removed.
type WorkflowReport struct {
	reports map[TaskID]ExecutionReport
}

// WithReport returns a copy of the aggregate with the given task's report
// added or replaced.
func (w WorkflowReport) WithReport(id TaskID, report ExecutionReport) WorkflowReport {
	reports := make(map[TaskID]ExecutionReport, len(w.reports)+1)
	for k, v := range w.reports {
		reports[k] = v
	}
	reports[id] = report
	return WorkflowReport{reports: reports}
}

// Report returns the latest report recorded for the given task.
func (w WorkflowReport) Report(id TaskID) (ExecutionReport, bool) {
	r, ok := w.reports[id]
	return r, ok
}

// Tasks returns the ids of all tasks with a recorded report, sorted.
func (w WorkflowReport) Tasks() []TaskID {
	ids := make([]TaskID, 0, len(w.reports))
	for id := range w.reports {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of tasks with a recorded report.
func (w WorkflowReport) Len() int {
	return len(w.reports)
}

// Failed returns the ids of tasks whose latest report carries an error,
// sorted.
func (w WorkflowReport) Failed() []TaskID {
	var ids []TaskID
	for id, r := range w.reports {
		if r.Err() != nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
