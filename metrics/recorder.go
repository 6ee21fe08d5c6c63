package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder maintains the standard per-workflow run metrics on top of a
// Registry: started/succeeded/failed counters and run duration labelled by
// workflow, plus a gauge of currently running workflows.
type Recorder struct {
	started   CounterVec
	succeeded CounterVec
	failed    CounterVec
	duration  GaugeVec

	mu          sync.Mutex
	runningNow  int
	runningGage Gauge
}

// NewRecorder creates a Recorder registering its metrics under the given
// namespace (typically the configured metrics prefix).
func NewRecorder(reg Registry, namespace string) (*Recorder, error) {
	started, err := reg.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workflow_runs_started_total",
		Help:      "Number of workflow runs started.",
	}, []string{"workflow"})
	if err != nil {
		return nil, fmt.Errorf("creating started counter: %w", err)
	}

	succeeded, err := reg.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workflow_runs_succeeded_total",
		Help:      "Number of workflow runs that finished without error.",
	}, []string{"workflow"})
	if err != nil {
		return nil, fmt.Errorf("creating succeeded counter: %w", err)
	}

	failed, err := reg.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workflow_runs_failed_total",
		Help:      "Number of workflow runs that finished with an error or were cancelled.",
	}, []string{"workflow"})
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	duration, err := reg.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workflow_run_duration_seconds",
		Help:      "Duration of the most recent run of each workflow.",
	}, []string{"workflow"})
	if err != nil {
		return nil, fmt.Errorf("creating duration gauge: %w", err)
	}

	running, err := reg.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "workflow_runs_running",
		Help:      "Number of workflow runs currently executing.",
	})
	if err != nil {
		return nil, fmt.Errorf("creating running gauge: %w", err)
	}

	return &Recorder{
		started:     started,
		succeeded:   succeeded,
		failed:      failed,
		duration:    duration,
		runningGage: running,
	}, nil
}

// RunStarted records the start of a run of the named workflow.
func (r *Recorder) RunStarted(workflow string) {
	r.started.With(prometheus.Labels{"workflow": workflow}).Inc()

	r.mu.Lock()
	r.runningNow++
	r.runningGage.Set(float64(r.runningNow))
	r.mu.Unlock()
}

// RunFinished records the end of a run of the named workflow.
func (r *Recorder) RunFinished(workflow string, d time.Duration, err error) {
	labels := prometheus.Labels{"workflow": workflow}
	if err != nil {
		r.failed.With(labels).Inc()
	} else {
		r.succeeded.With(labels).Inc()
	}
	r.duration.With(labels).Set(d.Seconds())

	r.mu.Lock()
	if r.runningNow > 0 {
		r.runningNow--
	}
	r.runningGage.Set(float64(r.runningNow))
	r.mu.Unlock()
}
