// Package details advances the persisted cursor through the flattened
// article queue, fetching detail documents in bounded batches. Failed
// items are recorded in the batch metrics document and skipped forever;
// the cursor always moves past a processed slice so no poison item can
// stall the queue.
package details

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"newscastd/internal/artifact"
	"newscastd/internal/batch"
	"newscastd/internal/logging"
	"newscastd/internal/services"
	"newscastd/internal/state"
)

// QueueItem is one entry of the flattened news queue written by the
// topic crawl stage.
type QueueItem struct {
	TopicIndex int    `json:"topicIndex"`
	NewsID     string `json:"newsID"`
}

// Fetcher fetches one article's detail document. *stages.Client
// implements it.
type Fetcher interface {
	CrawlDetail(ctx context.Context, runID string, topicIndex int, newsID string) (FetchResult, error)
}

// FetchResult is the subset of the stage response the processor records.
type FetchResult struct {
	Size int64
}

// ItemOutcome records one item's processing result inside the batch
// metrics document.
type ItemOutcome struct {
	NewsID      string `json:"newsID"`
	TopicIndex  int    `json:"topicIndex"`
	Status      string `json:"status"`
	StartedAt   string `json:"startedAt"`
	CompletedAt string `json:"completedAt"`
	DurationMS  int64  `json:"durationMs"`
	FileSize    int64  `json:"fileSize,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Metrics is the per-batch report written to the artifact store.
type Metrics struct {
	RunID       string `json:"runID"`
	BatchNumber int    `json:"batchNumber"`
	BatchRange  struct {
		StartIndex int `json:"startIndex"`
		EndIndex   int `json:"endIndex"`
		TotalItems int `json:"totalItems"`
	} `json:"batchRange"`
	Timing struct {
		StartedAt   string `json:"startedAt"`
		CompletedAt string `json:"completedAt"`
		DurationMS  int64  `json:"durationMs"`
	} `json:"timing"`
	Processing struct {
		TotalItems   int     `json:"totalItems"`
		SuccessCount int     `json:"successCount"`
		ErrorCount   int     `json:"errorCount"`
		SuccessRate  float64 `json:"successRate"`
	} `json:"processing"`
	FileSizes struct {
		TotalBytes   int64 `json:"totalBytes"`
		AverageBytes int64 `json:"averageBytes"`
		MaximumBytes int64 `json:"maximumBytes"`
		MinimumBytes int64 `json:"minimumBytes"`
	} `json:"fileSizes"`
	Performance struct {
		AverageMS int64 `json:"averageMs"`
		MaximumMS int64 `json:"maximumMs"`
		MinimumMS int64 `json:"minimumMs"`
		TotalMS   int64 `json:"totalMs"`
	} `json:"performance"`
	Items []ItemOutcome `json:"items"`
}

// Report is the processor's return value for one invocation.
type Report struct {
	RunID        string
	NoMoreItems  bool
	TotalItems   int
	StartIndex   int
	NewIndex     int
	SuccessCount int
	ErrorCount   int
	MetricsKey   string
}

// Options sizes one invocation.
type Options struct {
	BatchSize    int
	SubBatchSize int
}

// Processor drains the details queue one bounded slice per invocation.
type Processor struct {
	store     *state.Store
	artifacts *artifact.Store
	fetcher   Fetcher
	opts      Options
	logger    *slog.Logger
}

// NewProcessor constructs a details processor.
func NewProcessor(store *state.Store, artifacts *artifact.Store, fetcher Fetcher, opts Options, logger *slog.Logger) *Processor {
	if opts.BatchSize < 1 {
		opts.BatchSize = 40
	}
	if opts.SubBatchSize < 1 {
		opts.SubBatchSize = 10
	}
	return &Processor{
		store:     store,
		artifacts: artifacts,
		fetcher:   fetcher,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "details"),
	}
}

// Run processes the next slice of the queue for runID. The cursor
// advances past the slice regardless of per-item failures; an empty
// slice reports NoMoreItems without touching the cursor.
func (p *Processor) Run(ctx context.Context, runID string) (*Report, error) {
	startedAt := time.Now()

	var queue []QueueItem
	if err := p.artifacts.GetJSON(ctx, artifact.NewsListKey(runID), &queue); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, services.Wrap(services.ErrNotFound, "details", "load queue", "news list not yet crawled", nil)
		}
		return nil, err
	}
	for _, item := range queue {
		if item.TopicIndex < 1 {
			return nil, services.Wrap(services.ErrValidation, "details", "load queue", "item without topic index", nil)
		}
	}

	cursor, err := p.store.Cursor(ctx)
	if err != nil {
		return nil, err
	}

	end := cursor + p.opts.BatchSize
	if end > len(queue) {
		end = len(queue)
	}
	if cursor >= len(queue) {
		p.logger.Info("queue drained",
			logging.String(logging.FieldRunID, runID),
			logging.Int("cursor", cursor),
			logging.Int("total_items", len(queue)),
		)
		return &Report{RunID: runID, NoMoreItems: true, TotalItems: len(queue), StartIndex: cursor, NewIndex: cursor}, nil
	}

	slice := queue[cursor:end]
	p.logger.Info("processing batch",
		logging.String(logging.FieldRunID, runID),
		logging.Int("start_index", cursor),
		logging.Int("end_index", end-1),
		logging.Int("items", len(slice)),
	)

	outcomes := make([]ItemOutcome, 0, len(slice))
	for offset := 0; offset < len(slice); offset += p.opts.SubBatchSize {
		subEnd := offset + p.opts.SubBatchSize
		if subEnd > len(slice) {
			subEnd = len(slice)
		}
		results := batch.Run(ctx, slice[offset:subEnd], batch.Options{Limit: p.opts.SubBatchSize}, func(ctx context.Context, item QueueItem) (FetchResult, error) {
			return p.fetcher.CrawlDetail(ctx, runID, item.TopicIndex, item.NewsID)
		})
		for _, res := range results {
			outcome := ItemOutcome{
				NewsID:      res.Input.NewsID,
				TopicIndex:  res.Input.TopicIndex,
				StartedAt:   res.StartedAt.UTC().Format(time.RFC3339),
				CompletedAt: res.StartedAt.Add(res.Duration).UTC().Format(time.RFC3339),
				DurationMS:  res.Duration.Milliseconds(),
			}
			if res.Err != nil {
				outcome.Status = "error"
				outcome.Error = res.Err.Error()
				p.logger.Warn("detail fetch failed; item will not be retried",
					logging.String(logging.FieldRunID, runID),
					logging.String("news_id", res.Input.NewsID),
					logging.Int(logging.FieldTopicIndex, res.Input.TopicIndex),
					logging.Error(res.Err),
				)
			} else {
				outcome.Status = "success"
				outcome.FileSize = res.Output.Size
			}
			outcomes = append(outcomes, outcome)
		}
	}

	metrics := buildMetrics(runID, cursor, end, p.opts.BatchSize, startedAt, outcomes)
	metricsKey := artifact.BatchMetricsKey(runID, metrics.BatchNumber)
	if err := p.artifacts.PutJSON(ctx, metricsKey, metrics); err != nil {
		return nil, err
	}

	// Skip-and-advance: the cursor moves past the slice even when items
	// failed, so the queue keeps draining. The conditional write makes
	// an overlapping tick's duplicate advance fail loudly.
	if err := p.store.AdvanceCursor(ctx, cursor, end); err != nil {
		if errors.Is(err, state.ErrConflict) {
			p.logger.Warn("cursor advanced by a concurrent tick; keeping its value",
				logging.String(logging.FieldRunID, runID),
				logging.Int("start_index", cursor),
				logging.Int("new_index", end),
			)
		} else {
			return nil, err
		}
	}

	report := &Report{
		RunID:        runID,
		TotalItems:   len(queue),
		StartIndex:   cursor,
		NewIndex:     end,
		SuccessCount: metrics.Processing.SuccessCount,
		ErrorCount:   metrics.Processing.ErrorCount,
		MetricsKey:   metricsKey,
	}
	p.logger.Info("batch completed",
		logging.String(logging.FieldRunID, runID),
		logging.Int("success_count", report.SuccessCount),
		logging.Int("error_count", report.ErrorCount),
		logging.Int("new_index", report.NewIndex),
		logging.String("metrics_key", metricsKey),
	)
	return report, nil
}

func buildMetrics(runID string, cursor, end, batchSize int, startedAt time.Time, outcomes []ItemOutcome) Metrics {
	metrics := Metrics{
		RunID:       runID,
		BatchNumber: cursor/batchSize + 1,
		Items:       outcomes,
	}
	metrics.BatchRange.StartIndex = cursor
	metrics.BatchRange.EndIndex = end - 1
	metrics.BatchRange.TotalItems = len(outcomes)

	completedAt := time.Now()
	metrics.Timing.StartedAt = startedAt.UTC().Format(time.RFC3339)
	metrics.Timing.CompletedAt = completedAt.UTC().Format(time.RFC3339)
	metrics.Timing.DurationMS = completedAt.Sub(startedAt).Milliseconds()

	var sizeTotal, sizeMin, sizeMax int64
	var timeTotal, timeMin, timeMax int64
	successCount := 0
	sized := 0
	for i, outcome := range outcomes {
		if outcome.Status == "success" {
			successCount++
			sizeTotal += outcome.FileSize
			if sized == 0 || outcome.FileSize < sizeMin {
				sizeMin = outcome.FileSize
			}
			if outcome.FileSize > sizeMax {
				sizeMax = outcome.FileSize
			}
			sized++
		}
		timeTotal += outcome.DurationMS
		if i == 0 || outcome.DurationMS < timeMin {
			timeMin = outcome.DurationMS
		}
		if outcome.DurationMS > timeMax {
			timeMax = outcome.DurationMS
		}
	}

	metrics.Processing.TotalItems = len(outcomes)
	metrics.Processing.SuccessCount = successCount
	metrics.Processing.ErrorCount = len(outcomes) - successCount
	if len(outcomes) > 0 {
		metrics.Processing.SuccessRate = float64(successCount) / float64(len(outcomes)) * 100
	}

	metrics.FileSizes.TotalBytes = sizeTotal
	if sized > 0 {
		metrics.FileSizes.AverageBytes = sizeTotal / int64(sized)
		metrics.FileSizes.MinimumBytes = sizeMin
		metrics.FileSizes.MaximumBytes = sizeMax
	}

	metrics.Performance.TotalMS = timeTotal
	if len(outcomes) > 0 {
		metrics.Performance.AverageMS = timeTotal / int64(len(outcomes))
		metrics.Performance.MinimumMS = timeMin
		metrics.Performance.MaximumMS = timeMax
	}
	return metrics
}
