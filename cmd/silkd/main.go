// Command silkd runs registered workflows on cron schedules, exposing run
// metrics over scrape or remote write.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kaister3/silk/activity"
	"github.com/kaister3/silk/config"
	"github.com/kaister3/silk/cron"
	"github.com/kaister3/silk/logging"
	"github.com/kaister3/silk/metrics"
	"github.com/kaister3/silk/pool"
	"github.com/kaister3/silk/runner"
	"github.com/kaister3/silk/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *configPath == "" {
		return fmt.Errorf("config flag is required")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)

	workers := pool.New(cfg.Pool.Workers)

	recorder, err := setupMetrics(cfg.Monitoring, logger)
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}

	opts := []runner.Option{
		runner.WithPool(workers),
		runner.WithStore(runner.NewMemoryStore(cfg.History.MaxRuns)),
	}
	if recorder != nil {
		opts = append(opts, runner.WithRecorder(recorder))
	}
	r := runner.New(logger, opts...)

	if err := registerWorkflows(r); err != nil {
		return fmt.Errorf("failed to register workflows: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Triggers != "" {
		mgr, err := cron.NewManager(cfg.Triggers, r, logger, r.Registered())
		if err != nil {
			return fmt.Errorf("failed to parse triggers: %w", err)
		}
		mgr.Start(ctx)
	} else {
		logger.Warn("no triggers configured, nothing will run on a schedule")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig.String())
	cancel()
	return nil
}

// registerWorkflows adds the workflows this deployment runs. Only the
// built-in demo pipeline for now.
func registerWorkflows(r *runner.Runner) error {
	return r.Register("demo", func() activity.Activity[workflow.WorkflowReport] {
		return workflow.NewExecutor(
			demoDefinition{},
			demoProject{},
			demoRegistry{stepDelay: 500 * time.Millisecond},
		)
	})
}

// setupMetrics builds the run recorder from the monitoring config. Returns
// nil when metrics delivery is disabled.
func setupMetrics(cfg config.MonitoringConfig, logger *slog.Logger) (*metrics.Recorder, error) {
	var registry metrics.Registry

	switch {
	case cfg.ListenAddress != "":
		scrape, err := metrics.NewScrapeRegistry()
		if err != nil {
			return nil, err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", scrape.Handler())
		go func() {
			logger.Info("serving metrics", "address", cfg.ListenAddress)
			if err := http.ListenAndServe(cfg.ListenAddress, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		registry = scrape

	case cfg.RemoteWriteURL != "":
		registry = metrics.NewPushRegistry(metrics.PushConfig{
			URL:      cfg.RemoteWriteURL,
			Prefix:   cfg.MetricsPrefix,
			Job:      cfg.JobName,
			Instance: cfg.Instance,
			Timeout:  cfg.PushTimeout,
		})

	default:
		logger.Info("metrics delivery disabled")
		return nil, nil
	}

	return metrics.NewRecorder(registry, cfg.MetricsPrefix)
}
