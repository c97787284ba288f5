package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"shoutd/internal/config"
	"shoutd/internal/journal"
	"shoutd/internal/logging"
	"shoutd/internal/pubsub"
	"shoutd/internal/shout"
	"shoutd/internal/status"
	"shoutd/internal/worker"
)

func loadConfig(configFlag *string) (*config.Config, error) {
	path := ""
	if configFlag != nil {
		path = *configFlag
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the configured logger. Daemon runs log to a file under
// log_dir as well as stdout; one-shot commands log to stdout only.
func newLogger(cfg *config.Config, withFile bool) (*slog.Logger, error) {
	opts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if withFile {
		opts.OutputPaths = []string{"stdout", filepath.Join(cfg.Paths.LogDir, "shoutd.log")}
	}
	return logging.New(opts)
}

func newProcessor(cfg *config.Config) shout.Processor {
	if !cfg.Shout.Simulate {
		return shout.NewTransformer()
	}
	simCfg := shout.SimulatorConfig{
		CornFailureRate: cfg.Shout.CornFailureRate,
		TimeScale:       cfg.Shout.TimeScale,
	}
	if cfg.Shout.RandomSeed != 0 {
		simCfg.Rand = rand.New(rand.NewSource(cfg.Shout.RandomSeed))
	}
	return shout.NewSimulator(simCfg)
}

func buildWorker(cfg *config.Config, store *journal.Store, logger *slog.Logger) (*worker.Worker, error) {
	queue := pubsub.NewClient(pubsub.Options{
		Endpoint:       cfg.Queue.Endpoint,
		Project:        cfg.Queue.Project,
		Subscription:   cfg.Queue.Subscription,
		PullTimeout:    time.Duration(cfg.Queue.PullTimeout) * time.Second,
		RequestTimeout: time.Duration(cfg.Queue.RequestTimeout) * time.Second,
	})
	reporter := status.NewReporter(time.Duration(cfg.Status.RequestTimeout) * time.Second)

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	w, err := worker.New(worker.Config{
		Queue:              queue,
		Reporter:           reporter,
		Processor:          newProcessor(cfg),
		Journal:            store,
		Logger:             logger,
		RenewInterval:      time.Duration(cfg.Worker.RenewInterval) * time.Second,
		LeaseExtension:     time.Duration(cfg.Worker.LeaseExtension) * time.Second,
		ErrorRetryInterval: time.Duration(cfg.Worker.ErrorRetryInterval) * time.Second,
		Host:               host,
	})
	if err != nil {
		return nil, fmt.Errorf("build worker: %w", err)
	}
	return w, nil
}
