package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"newscastd/internal/logging"
)

// Runner drives the coordinator once per interval. The timetable is
// minute-granular, so the interval should stay at or below a minute.
type Runner struct {
	coordinator *Coordinator
	interval    time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRunner(coordinator *Coordinator, interval time.Duration, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Runner{
		coordinator: coordinator,
		interval:    interval,
		logger:      logging.NewComponentLogger(logger, "runner"),
	}
}

// Start begins the tick loop.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("runner already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.wg.Add(1)

	go r.loop(runCtx)
	return nil
}

// Stop ends the tick loop and waits for an in-flight tick to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()

	r.logger.Info("tick loop started",
		logging.Duration("interval", r.interval),
	)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.coordinator.Tick(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("tick loop stopped")
			return
		case now := <-ticker.C:
			r.coordinator.Tick(ctx, now)
		}
	}
}
