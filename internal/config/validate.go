package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime behavior.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Crawler.BaseURL) == "" {
		problems = append(problems, "crawler.base_url must not be empty")
	}
	if strings.TrimSpace(c.Generator.BaseURL) == "" {
		problems = append(problems, "generator.base_url must not be empty")
	}
	if c.Workflow.TopicCount < 1 || c.Workflow.TopicCount > 10 {
		problems = append(problems, "workflow.topic_count must be between 1 and 10")
	}
	if c.Workflow.DetailsBatchSize < 1 {
		problems = append(problems, "workflow.details_batch_size must be positive")
	}
	if c.Workflow.DetailsSubBatchSize < 1 {
		problems = append(problems, "workflow.details_sub_batch_size must be positive")
	}
	if c.Workflow.DetailsSubBatchSize > c.Workflow.DetailsBatchSize {
		problems = append(problems, "workflow.details_sub_batch_size must not exceed details_batch_size")
	}
	if c.Workflow.AudioConcurrency < 1 {
		problems = append(problems, "workflow.audio_concurrency must be positive")
	}
	if c.Workflow.RetryAttempts < 1 {
		problems = append(problems, "workflow.retry_attempts must be positive")
	}
	if c.Workflow.TickIntervalSeconds < 1 {
		problems = append(problems, "workflow.tick_interval_seconds must be positive")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
}
