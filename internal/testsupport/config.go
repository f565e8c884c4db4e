package testsupport

import (
	"path/filepath"
	"testing"

	"newscastd/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.LockFile = filepath.Join(base, "newscastd.lock")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Workflow.TickIntervalSeconds = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithTopicCount overrides the per-run topic count on the test config.
func WithTopicCount(n int) ConfigOption {
	return func(c *config.Config) {
		c.Workflow.TopicCount = n
	}
}

// WithBatchSizes overrides the details batch and sub-batch sizes.
func WithBatchSizes(batch, subBatch int) ConfigOption {
	return func(c *config.Config) {
		c.Workflow.DetailsBatchSize = batch
		c.Workflow.DetailsSubBatchSize = subBatch
	}
}
