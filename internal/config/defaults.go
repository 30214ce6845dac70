package config

const (
	defaultOutputDir            = "~/rips"
	defaultLogDir               = "~/.local/share/ripcord/logs"
	defaultLogRetentionDays     = 60
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultRipTimeout           = 7200
	defaultInfoTimeout          = 300
	defaultMinTitleSeconds      = 600
	defaultQueuePollInterval    = 5
	defaultReserveRetryInterval = 10
	defaultDriveRescanCron      = "*/10 * * * *"
	defaultLogRetentionCron     = "30 3 * * *"
	defaultNotifyTimeout        = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		MakeMKV: MakeMKV{
			RipTimeout:      defaultRipTimeout,
			InfoTimeout:     defaultInfoTimeout,
			MinTitleSeconds: defaultMinTitleSeconds,
			EjectAfterRip:   false,
		},
		Workflow: Workflow{
			QueuePollInterval:    defaultQueuePollInterval,
			ReserveRetryInterval: defaultReserveRetryInterval,
			DriveRescanCron:      defaultDriveRescanCron,
			LogRetentionCron:     defaultLogRetentionCron,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Rip:            true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
