package config

const (
	defaultDataDir            = "~/.local/share/mediaspool/data"
	defaultLogDir             = "~/.local/share/mediaspool/logs"
	defaultPrimaryMaxBytes    = 4 << 20
	defaultCatalogBlobID      = "catalog"
	defaultQueueSweepHours    = 24
	defaultHistoryPurgeDays   = 30
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultMaxRetries         = 3
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Storage: Storage{
			PrimaryMaxBytes: defaultPrimaryMaxBytes,
			CatalogBlobID:   defaultCatalogBlobID,
		},
		Retention: Retention{
			QueueSweepHours:  defaultQueueSweepHours,
			HistoryPurgeDays: defaultHistoryPurgeDays,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			MaxRetries:         defaultMaxRetries,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
