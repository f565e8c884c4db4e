// Package daemon hosts the long-running coordinator process: the tick
// loop, the single-instance lock, and the HTTP control surface.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"newscastd/internal/config"
	"newscastd/internal/logging"
	"newscastd/internal/pipeline"
	"newscastd/internal/state"
)

// Daemon owns the background runner and enforces single-instance
// execution through a file lock.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *state.Store
	coordinator *pipeline.Coordinator
	runner      *pipeline.Runner
	finalizer   pipeline.FinalizeRunner

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	ActiveRunID    string
	PublishedRunID string
	DetailCursor   int
	LastTick       pipeline.TickReport
	StateDBPath    string
	LockFilePath   string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *state.Store, coordinator *pipeline.Coordinator, runner *pipeline.Runner, finalizer pipeline.FinalizeRunner, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || coordinator == nil || runner == nil {
		return nil, errors.New("daemon requires config, store, coordinator, and runner")
	}

	d := &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		store:       store,
		coordinator: coordinator,
		runner:      runner,
		finalizer:   finalizer,
		lockPath:    cfg.Paths.LockFile,
		lock:        flock.New(cfg.Paths.LockFile),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the instance lock and launches the tick loop and API
// server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another newscastd instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.runner.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start runner: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.runner.Stop()
			_ = d.lock.Unlock()
			cancel()
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("state_db", d.store.Path()),
	)
	return nil
}

// Stop shuts down background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.runner.Stop()
	if d.api != nil {
		d.api.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// APIAddr returns the bound address of the HTTP API, or empty when the
// API is disabled or not yet started.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status reports the daemon's runtime state.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LastTick:     d.coordinator.LastTick(),
		StateDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if runID, err := d.store.ActiveRunID(ctx); err == nil {
		status.ActiveRunID = runID
	}
	if published, err := d.store.PublishedRunID(ctx); err == nil {
		status.PublishedRunID = published
	}
	if cursor, err := d.store.Cursor(ctx); err == nil {
		status.DetailCursor = cursor
	}
	return status
}
