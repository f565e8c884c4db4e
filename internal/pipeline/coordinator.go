// Package pipeline routes scheduled work to the stage collaborators and
// records the outcome of every tick. The coordinator never lets a stage
// failure escape a tick: one bad minute must not stop the next one.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"newscastd/internal/audiosynth"
	"newscastd/internal/details"
	"newscastd/internal/finalize"
	"newscastd/internal/logging"
	"newscastd/internal/schedule"
	"newscastd/internal/services"
	"newscastd/internal/stages"
	"newscastd/internal/state"
)

// StageCaller covers the HTTP stage calls the coordinator routes
// directly. The details, audio, and finalize stages have their own
// drivers.
type StageCaller interface {
	CrawlTopics(ctx context.Context) (stages.Result, error)
	GenerateNews(ctx context.Context, runID string, topicIndex int) (stages.Result, error)
	GenerateScript(ctx context.Context, runID string, topicIndex int) (stages.Result, error)
	MergeAudio(ctx context.Context, runID string, topicIndex int) (stages.Result, error)
}

// DetailsRunner processes the next batch of the article detail queue.
type DetailsRunner interface {
	Run(ctx context.Context, runID string) (*details.Report, error)
}

// AudioRunner synthesizes one topic's script.
type AudioRunner interface {
	Run(ctx context.Context, runID string, topicIndex int) (*audiosynth.Report, error)
}

// FinalizeRunner validates and optionally promotes a run.
type FinalizeRunner interface {
	Run(ctx context.Context, runID string, promote bool) (*finalize.Outcome, error)
}

// TickReport records what one tick did, for the status API and logs.
type TickReport struct {
	At         time.Time `json:"at"`
	Work       string    `json:"work,omitempty"`
	TopicIndex int       `json:"topic_index,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	Skipped    string    `json:"skipped,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// Coordinator owns the time-to-work dispatch.
type Coordinator struct {
	store     *state.Store
	stages    StageCaller
	details   DetailsRunner
	audio     AudioRunner
	finalizer FinalizeRunner
	logger    *slog.Logger

	tickMu sync.Mutex

	mu         sync.Mutex
	lastTick   TickReport
	lastMinute string
}

func NewCoordinator(store *state.Store, caller StageCaller, detailsRunner DetailsRunner, audioRunner AudioRunner, finalizer FinalizeRunner, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		stages:    caller,
		details:   detailsRunner,
		audio:     audioRunner,
		finalizer: finalizer,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Tick runs whatever the timetable schedules for now. Stage errors are
// logged and recorded in the report but never returned; the scheduler
// loop must survive any single minute going wrong.
func (c *Coordinator) Tick(ctx context.Context, now time.Time) TickReport {
	now = now.UTC()
	report := TickReport{At: now}

	work, ok := schedule.Determine(now.Hour(), now.Minute())
	if !ok {
		report.Skipped = "nothing scheduled"
		c.remember(report)
		return report
	}
	report.Work = work.Kind.String()
	report.TopicIndex = work.TopicIndex

	minute := now.Format("2006-01-02T15:04")
	if !c.claimMinute(minute) {
		report.Skipped = "minute already dispatched"
		c.remember(report)
		return report
	}

	if !c.tickMu.TryLock() {
		report.Skipped = "previous tick still running"
		c.logger.Warn("tick overlap",
			logging.String(logging.FieldStage, report.Work),
			logging.String("minute", minute),
		)
		c.remember(report)
		return report
	}
	defer c.tickMu.Unlock()

	started := time.Now()
	runID, err := c.dispatch(ctx, work)
	report.RunID = runID
	report.DurationMS = time.Since(started).Milliseconds()
	if err != nil {
		report.Error = err.Error()
		c.logger.Error("stage failed",
			logging.String(logging.FieldStage, report.Work),
			logging.String(logging.FieldRunID, runID),
			logging.Int(logging.FieldTopicIndex, work.TopicIndex),
			logging.Bool("retryable", services.Retryable(err)),
			logging.Error(err),
		)
	} else {
		c.logger.Info("tick completed",
			logging.String(logging.FieldStage, report.Work),
			logging.String(logging.FieldRunID, runID),
			logging.Int(logging.FieldTopicIndex, work.TopicIndex),
			logging.Int64("duration_ms", report.DurationMS),
		)
	}
	c.remember(report)
	return report
}

// Trigger runs one stage outside the timetable, for the manual API.
// Unlike Tick it propagates the stage error to the caller.
func (c *Coordinator) Trigger(ctx context.Context, work schedule.WorkItem) (TickReport, error) {
	report := TickReport{At: time.Now().UTC(), Work: work.Kind.String(), TopicIndex: work.TopicIndex}

	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	started := time.Now()
	runID, err := c.dispatch(ctx, work)
	report.RunID = runID
	report.DurationMS = time.Since(started).Milliseconds()
	if err != nil {
		report.Error = err.Error()
	}
	c.remember(report)
	return report, err
}

// LastTick returns the most recent tick report.
func (c *Coordinator) LastTick() TickReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTick
}

func (c *Coordinator) remember(report TickReport) {
	c.mu.Lock()
	c.lastTick = report
	c.mu.Unlock()
}

func (c *Coordinator) claimMinute(minute string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastMinute == minute {
		return false
	}
	c.lastMinute = minute
	return true
}

func (c *Coordinator) dispatch(ctx context.Context, work schedule.WorkItem) (string, error) {
	if work.Kind == schedule.KindCrawlTopics {
		return c.beginRun(ctx)
	}

	runID, err := c.store.ActiveRunID(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(runID) == "" {
		c.logger.Warn("no active run, stage skipped",
			logging.String(logging.FieldStage, work.Kind.String()),
		)
		return "", nil
	}

	switch work.Kind {
	case schedule.KindCrawlDetails:
		_, err := c.details.Run(ctx, runID)
		return runID, err
	case schedule.KindGenerateNews:
		return runID, c.callStage(ctx, runID, work, c.stages.GenerateNews)
	case schedule.KindGenerateScript:
		return runID, c.callStage(ctx, runID, work, c.stages.GenerateScript)
	case schedule.KindGenerateAudio:
		_, err := c.audio.Run(ctx, runID, work.TopicIndex)
		return runID, err
	case schedule.KindMergeAudio:
		return runID, c.callStage(ctx, runID, work, c.stages.MergeAudio)
	case schedule.KindComplete:
		_, err := c.finalizer.Run(ctx, runID, true)
		return runID, err
	default:
		return runID, services.Wrap(services.ErrConfiguration, work.Kind.String(), "dispatch", "unmapped work kind", nil)
	}
}

// beginRun asks the crawler for today's topics and adopts the run id it
// minted, resetting the detail cursor for the new queue.
func (c *Coordinator) beginRun(ctx context.Context) (string, error) {
	result, err := c.stages.CrawlTopics(ctx)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", services.Wrap(services.ErrTransient, "crawl-topics", "call", stageMessage(result), nil)
	}
	if err := c.store.BeginRun(ctx, result.RunID); err != nil {
		return result.RunID, err
	}
	c.logger.Info("run started",
		logging.String(logging.FieldRunID, result.RunID),
	)
	return result.RunID, nil
}

func (c *Coordinator) callStage(ctx context.Context, runID string, work schedule.WorkItem, call func(context.Context, string, int) (stages.Result, error)) error {
	result, err := call(ctx, runID, work.TopicIndex)
	if err != nil {
		return err
	}
	if !result.Success {
		return services.Wrap(services.ErrTransient, work.Kind.String(), "call", stageMessage(result), nil)
	}
	return nil
}

func stageMessage(result stages.Result) string {
	if strings.TrimSpace(result.Message) != "" {
		return result.Message
	}
	return fmt.Sprintf("stage reported failure after %dms", result.TimingMS)
}
