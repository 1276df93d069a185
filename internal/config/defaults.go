package config

const (
	defaultStateDir              = "~/.local/share/ferry"
	defaultLogDir                = "~/.local/share/ferry/logs"
	defaultAPIBind               = "127.0.0.1:7521"
	defaultMaxPersistMiB         = 50
	defaultUploadConcurrency     = 3
	defaultPersistIntervalMillis = 500
	defaultProgressTickMillis    = 100
	defaultCompletionGraceMillis = 1500
	defaultRemoteBackend         = BackendLocal
	defaultRemoteLocalDir        = "~/.local/share/ferry/remote"
	defaultRemotePrefix          = "uploads"
	defaultNtfyRequestTimeout    = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	maxUploadConcurrency         = 64
	minProgressTickMillis        = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Queue: Queue{
			MaxPersistMiB: defaultMaxPersistMiB,
		},
		Upload: Upload{
			Concurrency:       defaultUploadConcurrency,
			PersistIntervalMS: defaultPersistIntervalMillis,
		},
		Progress: Progress{
			TickMS:            defaultProgressTickMillis,
			CompletionGraceMS: defaultCompletionGraceMillis,
		},
		Remote: Remote{
			Backend:  defaultRemoteBackend,
			Prefix:   defaultRemotePrefix,
			LocalDir: defaultRemoteLocalDir,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
