package config

const (
	defaultConfigPath        = "~/.config/stemworker/config.toml"
	defaultWorkspaceRoot     = "~/.local/share/stemworker/workspaces"
	defaultSharedOutputDir   = "~/Music/Logic"
	defaultStateDir          = "~/.local/share/stemworker"
	defaultLogDir            = "~/.local/share/stemworker/logs"
	defaultAPIBind           = "127.0.0.1:8000"
	defaultQueueBackend      = "redis"
	defaultQueueKey          = "logic-processing"
	defaultQueuePollTimeout  = 1
	defaultRedisAddr         = "127.0.0.1:6379"
	defaultGsutilPath        = "gsutil"
	defaultS3Region          = "us-east-1"
	defaultAutomationTimeout = 900
	defaultSettleBefore      = 10
	defaultSettleAfter       = 40
	defaultMixSuffix         = "_mix.wav"
	defaultAudioExtension    = ".wav"
	defaultProbe             = "native"
	defaultFFprobeBinary     = "ffprobe"
	defaultPrefixFrames      = 1000
	defaultTrackerBackend    = "sqlite"
	defaultCallbackTimeout   = 10
	defaultSubjectPrefix     = "stemworker.jobs"
	defaultErrorBackoff      = 1
	defaultWorkspaceMaxAge   = 24
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceRoot:   defaultWorkspaceRoot,
			SharedOutputDir: defaultSharedOutputDir,
			StateDir:        defaultStateDir,
			LogDir:          defaultLogDir,
			APIBind:         defaultAPIBind,
		},
		Queue: Queue{
			Backend:     defaultQueueBackend,
			Key:         defaultQueueKey,
			PollTimeout: defaultQueuePollTimeout,
			RedisAddr:   defaultRedisAddr,
		},
		Storage: Storage{
			S3Region:   defaultS3Region,
			S3Secure:   true,
			GsutilPath: defaultGsutilPath,
		},
		Automation: Automation{
			Timeout:      defaultAutomationTimeout,
			SettleBefore: defaultSettleBefore,
			SettleAfter:  defaultSettleAfter,
		},
		Validation: Validation{
			MixSuffix:      defaultMixSuffix,
			AudioExtension: defaultAudioExtension,
			Probe:          defaultProbe,
			FFprobeBinary:  defaultFFprobeBinary,
			PrefixFrames:   defaultPrefixFrames,
		},
		Tracker: Tracker{
			Backend: defaultTrackerBackend,
		},
		Callback: Callback{
			Timeout: defaultCallbackTimeout,
		},
		Events: Events{
			SubjectPrefix: defaultSubjectPrefix,
		},
		Workflow: Workflow{
			ErrorBackoff:       defaultErrorBackoff,
			WorkspaceMaxAgeHrs: defaultWorkspaceMaxAge,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
