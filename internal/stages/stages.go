package stages

import (
	"context"
	"encoding/json"
	"strings"

	"newscastd/internal/logging"
	"newscastd/internal/services"
)

// CrawlTopics asks the crawler to collect today's topics and seed a new
// run. The crawler creates the run id and returns it in the envelope.
func (c *Client) CrawlTopics(ctx context.Context) (Result, error) {
	var result Result
	target := c.crawler.endpoint("/topics", nil)
	if err := c.do(ctx, c.crawler, "crawl-topics", target, nil, &result); err != nil {
		return Result{}, err
	}
	if result.Success && strings.TrimSpace(result.RunID) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "crawl-topics", "decode response", "missing run id", nil)
	}
	return result, nil
}

// CrawlDetail fetches and stores one article's detail document.
func (c *Client) CrawlDetail(ctx context.Context, runID string, topicIndex int, newsID string) (DetailResult, error) {
	params := runParams(runID, topicIndex)
	params.Set("news-id", newsID)
	target := c.crawler.endpoint("/news-detail", params)

	var result DetailResult
	if err := c.do(ctx, c.crawler, "crawl-detail", target, nil, &result); err != nil {
		return DetailResult{}, err
	}
	return result, nil
}

// GenerateNews consolidates one topic's crawled articles into a news
// document.
func (c *Client) GenerateNews(ctx context.Context, runID string, topicIndex int) (Result, error) {
	var result Result
	target := c.generator.endpoint("/news", runParams(runID, topicIndex))
	err := c.do(ctx, c.generator, "generate-news", target, nil, &result)
	if err != nil {
		return Result{}, err
	}
	c.logResult("generate-news", runID, topicIndex, result)
	return result, nil
}

// GenerateScript turns one topic's consolidated news into a two-host
// dialogue script.
func (c *Client) GenerateScript(ctx context.Context, runID string, topicIndex int) (Result, error) {
	var result Result
	target := c.generator.endpoint("/script", runParams(runID, topicIndex))
	err := c.do(ctx, c.generator, "generate-script", target, nil, &result)
	if err != nil {
		return Result{}, err
	}
	c.logResult("generate-script", runID, topicIndex, result)
	return result, nil
}

// SynthesizeLine turns one dialogue line into audio bytes via the TTS
// endpoint.
func (c *Client) SynthesizeLine(ctx context.Context, runID string, topicIndex, sequence int, content, voiceModel string) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"sequence":    sequence,
		"content":     content,
		"voice_model": voiceModel,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "synthesize-line", "encode request", "", err)
	}
	target := c.generator.endpoint("/audio-line", runParams(runID, topicIndex))
	return c.doRaw(ctx, c.generator, "synthesize-line", target, body)
}

// MergeAudio concatenates one topic's per-line audio clips into the
// final track.
func (c *Client) MergeAudio(ctx context.Context, runID string, topicIndex int) (Result, error) {
	var result Result
	target := c.generator.endpoint("/merge", runParams(runID, topicIndex))
	err := c.do(ctx, c.generator, "merge-audio", target, nil, &result)
	if err != nil {
		return Result{}, err
	}
	c.logResult("merge-audio", runID, topicIndex, result)
	return result, nil
}

func (c *Client) logResult(stage, runID string, topicIndex int, result Result) {
	if result.Success {
		c.logger.Info("stage call completed",
			logging.String(logging.FieldStage, stage),
			logging.String(logging.FieldRunID, runID),
			logging.Int(logging.FieldTopicIndex, topicIndex),
			logging.Int64("timing_ms", result.TimingMS),
		)
		return
	}
	c.logger.Warn("stage call reported failure",
		logging.String(logging.FieldStage, stage),
		logging.String(logging.FieldRunID, runID),
		logging.Int(logging.FieldTopicIndex, topicIndex),
		logging.String("message", result.Message),
	)
}
