package main

import (
	"log/slog"
	"time"

	"newscastd/internal/artifact"
	"newscastd/internal/audiosynth"
	"newscastd/internal/config"
	"newscastd/internal/daemon"
	"newscastd/internal/details"
	"newscastd/internal/finalize"
	"newscastd/internal/pipeline"
	"newscastd/internal/stages"
	"newscastd/internal/state"
)

// buildDaemon wires the coordinator's dependency graph from config.
func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := state.Open(cfg)
	if err != nil {
		return nil, err
	}
	artifacts, err := artifact.NewStore(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	client := stages.NewClient(cfg, logger)

	detailsRunner := details.NewProcessor(store, artifacts, pipeline.NewStageDetailFetcher(client), details.Options{
		BatchSize:    cfg.Workflow.DetailsBatchSize,
		SubBatchSize: cfg.Workflow.DetailsSubBatchSize,
	}, logger)

	audioRunner := audiosynth.New(artifacts, client, audiosynth.Options{
		Concurrency:   cfg.Workflow.AudioConcurrency,
		WaveDelay:     time.Duration(cfg.Workflow.AudioDelayMS) * time.Millisecond,
		RetryAttempts: cfg.Workflow.RetryAttempts,
		RetryDelay:    time.Duration(cfg.Workflow.RetryDelayMS) * time.Millisecond,
	}, logger)

	finalizer := finalize.New(store, artifacts, cfg.Workflow.TopicCount, logger)

	coordinator := pipeline.NewCoordinator(store, client, detailsRunner, audioRunner, finalizer, logger)
	runner := pipeline.NewRunner(coordinator, time.Duration(cfg.Workflow.TickIntervalSeconds)*time.Second, logger)

	d, err := daemon.New(cfg, store, coordinator, runner, finalizer, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return d, nil
}
