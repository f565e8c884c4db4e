package config

const (
	defaultDataDir             = "~/.local/share/newscastd/data"
	defaultLogDir              = "~/.local/share/newscastd/logs"
	defaultAPIBind             = "127.0.0.1:7520"
	defaultLockFile            = "~/.local/share/newscastd/newscastd.lock"
	defaultCrawlerBaseURL      = "http://127.0.0.1:8781"
	defaultGeneratorBaseURL    = "http://127.0.0.1:8782"
	defaultStageTimeoutSeconds = 55
	defaultTopicCount          = 10
	defaultDetailsBatchSize    = 40
	defaultDetailsSubBatch     = 10
	defaultAudioConcurrency    = 3
	defaultAudioDelayMS        = 500
	defaultRetryAttempts       = 3
	defaultRetryDelayMS        = 1000
	defaultTickIntervalSeconds = 60
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
			LockFile: defaultLockFile,
		},
		Crawler: Crawler{
			BaseURL:        defaultCrawlerBaseURL,
			TimeoutSeconds: defaultStageTimeoutSeconds,
		},
		Generator: Generator{
			BaseURL:        defaultGeneratorBaseURL,
			TimeoutSeconds: defaultStageTimeoutSeconds,
		},
		Workflow: Workflow{
			TopicCount:          defaultTopicCount,
			DetailsBatchSize:    defaultDetailsBatchSize,
			DetailsSubBatchSize: defaultDetailsSubBatch,
			AudioConcurrency:    defaultAudioConcurrency,
			AudioDelayMS:        defaultAudioDelayMS,
			RetryAttempts:       defaultRetryAttempts,
			RetryDelayMS:        defaultRetryDelayMS,
			TickIntervalSeconds: defaultTickIntervalSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
