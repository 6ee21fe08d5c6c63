// Package metrics provides Prometheus-compatible metrics for workflow runs.
//
// Two registry implementations exist behind the same Registry interface:
//   - ScrapeRegistry: metrics live in a Prometheus registry and are exposed
//     over HTTP for scraping (long-running server deployments).
//   - PushRegistry: every update is pushed to a Prometheus/VictoriaMetrics
//     remote-write endpoint (short-lived or scheduled deployments that a
//     scraper would miss).
//
// The Recorder sits on top of either registry and maintains the standard
// per-workflow run metrics the runner reports.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Gauge is a metric representing a single value that can go up and down.
type Gauge interface {
	// Set sets the Gauge to the given value.
	Set(float64)
}

// Counter is a monotonically increasing metric.
type Counter interface {
	// Inc increments the counter by 1.
	Inc()
	// Add adds the given value to the counter. It panics if the value is negative.
	Add(float64)
}

// GaugeVec is a Gauge with labels.
type GaugeVec interface {
	// With returns the Gauge for the given Labels.
	With(prometheus.Labels) Gauge
}

// CounterVec is a Counter with labels.
type CounterVec interface {
	// With returns the Counter for the given Labels.
	With(prometheus.Labels) Counter
}

// Registry creates and registers metrics. Implementations hide the
// difference between scrape and push delivery.
type Registry interface {
	// NewGauge creates and registers a new Gauge.
	NewGauge(opts prometheus.GaugeOpts) (Gauge, error)

	// NewGaugeVec creates and registers a new GaugeVec.
	NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error)

	// NewCounter creates and registers a new Counter.
	NewCounter(opts prometheus.CounterOpts) (Counter, error)

	// NewCounterVec creates and registers a new CounterVec.
	NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error)
}
