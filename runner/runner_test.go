package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaister3/silk/activity"
	"github.com/kaister3/silk/metrics"
	"github.com/kaister3/silk/user"
	"github.com/kaister3/silk/workflow"
)

// fakeWorkflow is a workflow activity with scriptable behaviour. Tests that
// need to observe a run mid-flight use the block/started channels.
type fakeWorkflow struct {
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeWorkflow) Run(ctx *activity.Context[workflow.WorkflowReport]) error {
	ctx.Logger().Info("task executing", "task", "t1")
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Context().Done():
			return ctx.Context().Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	ctx.Value().Update(func(r workflow.WorkflowReport) workflow.WorkflowReport {
		return r.WithReport("t1", workflow.Report{Message: "done t1", Progress: 1, Done: true})
	})
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func factoryFor(wf *fakeWorkflow) Factory {
	return func() activity.Activity[workflow.WorkflowReport] { return wf }
}

// waitHistory blocks until the store holds n runs; completion recording
// happens on a background goroutine after the run itself finishes.
func waitHistory(t *testing.T, r *Runner, n int) []Record {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(r.History()) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return r.History()
}

// startEventually retries Start until the runner accepts it; a just-finished
// run briefly blocks new starts while its history record is being saved.
func startEventually(t *testing.T, r *Runner, name string) string {
	t.Helper()
	var id string
	require.Eventually(t, func() bool {
		got, err := r.Start(name, user.Empty)
		if err != nil {
			return false
		}
		id = got
		return true
	}, 2*time.Second, time.Millisecond)
	return id
}

func TestRegister(t *testing.T) {
	r := New(quietLogger())
	require.NoError(t, r.Register("linkage", factoryFor(&fakeWorkflow{})))
	require.NoError(t, r.Register("cleanup", factoryFor(&fakeWorkflow{})))

	assert.Equal(t, []string{"cleanup", "linkage"}, r.Workflows())
	assert.Equal(t, map[string]bool{"linkage": true, "cleanup": true}, r.Registered())

	err := r.Register("linkage", factoryFor(&fakeWorkflow{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestStartRecordsSuccessfulRun(t *testing.T) {
	r := New(quietLogger())
	require.NoError(t, r.Register("linkage", factoryFor(&fakeWorkflow{})))

	runID, err := r.Start("linkage", user.Empty)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.NoError(t, r.Wait(context.Background(), "linkage"))
	history := waitHistory(t, r, 1)

	rec := history[0]
	assert.Equal(t, runID, rec.ID)
	assert.Equal(t, "linkage", rec.Workflow)
	assert.True(t, rec.Succeeded())
	assert.False(t, rec.StartedAt.IsZero())
	assert.False(t, rec.EndedAt.Before(rec.StartedAt))

	report, ok := rec.Report.Report("t1")
	require.True(t, ok)
	assert.Equal(t, "done t1", report.Summary())
	assert.True(t, report.Finished())

	// The run's log output is captured alongside the record.
	messages := make([]string, 0, len(rec.Logs))
	for _, e := range rec.Logs {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "task executing")
}

func TestStartUnknownWorkflow(t *testing.T) {
	r := New(quietLogger())
	_, err := r.Start("nosuch", user.Empty)
	require.ErrorIs(t, err, ErrUnknownWorkflow)
}

func TestStartRejectsConcurrentRun(t *testing.T) {
	wf := &fakeWorkflow{block: make(chan struct{}), started: make(chan struct{})}
	r := New(quietLogger())
	require.NoError(t, r.Register("linkage", factoryFor(wf)))

	_, err := r.Start("linkage", user.Empty)
	require.NoError(t, err)
	<-wf.started
	assert.True(t, r.IsRunning("linkage"))

	_, err = r.Start("linkage", user.Empty)
	require.ErrorIs(t, err, ErrRunInProgress)

	close(wf.block)
	require.NoError(t, r.Wait(context.Background(), "linkage"))
	waitHistory(t, r, 1)
	assert.False(t, r.IsRunning("linkage"))
}

func TestRunStartsAllAndJoinsErrors(t *testing.T) {
	wf := &fakeWorkflow{block: make(chan struct{}), started: make(chan struct{})}
	r := New(quietLogger())
	require.NoError(t, r.Register("linkage", factoryFor(wf)))
	require.NoError(t, r.Register("cleanup", factoryFor(&fakeWorkflow{})))

	_, err := r.Start("linkage", user.Empty)
	require.NoError(t, err)
	<-wf.started

	// linkage is busy and nosuch does not exist, but cleanup still starts.
	err = r.Run([]string{"linkage", "cleanup", "nosuch"})
	require.ErrorIs(t, err, ErrRunInProgress)
	require.ErrorIs(t, err, ErrUnknownWorkflow)

	require.NoError(t, r.Wait(context.Background(), "cleanup"))
	close(wf.block)
	require.NoError(t, r.Wait(context.Background(), "linkage"))
	history := waitHistory(t, r, 2)

	workflows := []string{history[0].Workflow, history[1].Workflow}
	assert.Contains(t, workflows, "linkage")
	assert.Contains(t, workflows, "cleanup")
}

func TestFailedRunRecorded(t *testing.T) {
	wf := &fakeWorkflow{err: errors.New("linkage exploded")}
	r := New(quietLogger())
	require.NoError(t, r.Register("linkage", factoryFor(wf)))

	_, err := r.Start("linkage", user.Empty)
	require.NoError(t, err)
	require.NoError(t, r.Wait(context.Background(), "linkage"))
	history := waitHistory(t, r, 1)

	rec := history[0]
	assert.False(t, rec.Succeeded())
	assert.Contains(t, rec.Error, "linkage exploded")
}

func TestCancelStopsRun(t *testing.T) {
	wf := &fakeWorkflow{block: make(chan struct{}), started: make(chan struct{})}
	r := New(quietLogger())
	require.NoError(t, r.Register("linkage", factoryFor(wf)))

	_, err := r.Start("linkage", user.Empty)
	require.NoError(t, err)
	<-wf.started

	require.NoError(t, r.Cancel("linkage"))
	require.NoError(t, r.Wait(context.Background(), "linkage"))
	history := waitHistory(t, r, 1)

	assert.False(t, history[0].Succeeded())
	assert.Contains(t, history[0].Error, context.Canceled.Error())

	require.ErrorIs(t, r.Cancel("nosuch"), ErrUnknownWorkflow)
}

func TestStatus(t *testing.T) {
	wf := &fakeWorkflow{block: make(chan struct{}), started: make(chan struct{})}
	r := New(quietLogger())
	require.NoError(t, r.Register("linkage", factoryFor(wf)))

	// Before the first run: idle, no run id.
	status, err := r.Status("linkage")
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Empty(t, status.RunID)
	assert.Nil(t, status.StartedAt)

	runID, err := r.Start("linkage", user.Empty)
	require.NoError(t, err)
	<-wf.started

	status, err = r.Status("linkage")
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, runID, status.RunID)
	require.NotNil(t, status.StartedAt)
	messages := make([]string, 0, len(status.Logs))
	for _, e := range status.Logs {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "task executing")

	close(wf.block)
	require.NoError(t, r.Wait(context.Background(), "linkage"))
	waitHistory(t, r, 1)

	status, err = r.Status("linkage")
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Equal(t, runID, status.RunID)

	_, err = r.Status("nosuch")
	require.ErrorIs(t, err, ErrUnknownWorkflow)
}

// scriptedWorkflow returns the queued errors in order, then succeeds.
type scriptedWorkflow struct {
	mu   sync.Mutex
	errs []error
}

func (s *scriptedWorkflow) Run(*activity.Context[workflow.WorkflowReport]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func TestBackToBackRestartKeepsFirstRunOutcome(t *testing.T) {
	wf := &scriptedWorkflow{errs: []error{errors.New("run one exploded")}}
	r := New(quietLogger())
	require.NoError(t, r.Register("linkage", func() activity.Activity[workflow.WorkflowReport] {
		return wf
	}))

	first, err := r.Start("linkage", user.Empty)
	require.NoError(t, err)
	require.NoError(t, r.Wait(context.Background(), "linkage"))

	// Restart the moment Wait returns. The runner must hold the new run
	// back until the first run's record is saved, so the failure and the
	// captured logs cannot be overwritten.
	second := startEventually(t, r, "linkage")

	require.NoError(t, r.Wait(context.Background(), "linkage"))
	history := waitHistory(t, r, 2)

	require.Equal(t, second, history[0].ID)
	require.Equal(t, first, history[1].ID)
	assert.True(t, history[0].Succeeded())
	assert.False(t, history[1].Succeeded())
	assert.Contains(t, history[1].Error, "run one exploded")
}

func TestSecondRunGetsFreshReport(t *testing.T) {
	r := New(quietLogger())
	require.NoError(t, r.Register("linkage", factoryFor(&fakeWorkflow{})))

	first, err := r.Start("linkage", user.Empty)
	require.NoError(t, err)
	require.NoError(t, r.Wait(context.Background(), "linkage"))
	waitHistory(t, r, 1)

	second := startEventually(t, r, "linkage")
	assert.NotEqual(t, first, second)
	require.NoError(t, r.Wait(context.Background(), "linkage"))
	history := waitHistory(t, r, 2)

	assert.Equal(t, second, history[0].ID)
	assert.Equal(t, first, history[1].ID)
}

func TestRunWithRecorder(t *testing.T) {
	reg, err := metrics.NewScrapeRegistry()
	require.NoError(t, err)
	recorder, err := metrics.NewRecorder(reg, "test")
	require.NoError(t, err)

	r := New(quietLogger(), WithRecorder(recorder))
	require.NoError(t, r.Register("linkage", factoryFor(&fakeWorkflow{})))

	require.NoError(t, r.Run([]string{"linkage"}))
	require.NoError(t, r.Wait(context.Background(), "linkage"))
	waitHistory(t, r, 1)
}
