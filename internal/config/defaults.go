package config

const (
	defaultTimeoutSeconds = 300
	defaultMaxRetryCount  = 2
	defaultMutexName      = "FileJobRouter.DeviceLock"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultRetentionDays  = 30
	defaultLauncherCmd    = "dotnet"
)

// Default returns a Config populated with the engine's built-in defaults.
// Load overlays config.json on top of this before normalizing.
func Default() Config {
	return Config{
		TimeoutSeconds:             defaultTimeoutSeconds,
		MaxRetryCount:              defaultMaxRetryCount,
		MutexName:                  defaultMutexName,
		IgnoreHiddenAndSystemFiles: true,
		RuntimeLauncherCommand:     defaultLauncherCmd,
		Mappings:                   map[string]WorkerMapping{},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultRetentionDays,
		},
		Notifier: Notifier{
			CandidateURLs: []string{
				"http://localhost:8711/hub",
				"http://127.0.0.1:8711/hub",
			},
		},
	}
}
