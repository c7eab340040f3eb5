package config

const (
	defaultConfigPath          = "~/.config/longrec/config.toml"
	defaultLogDir              = "~/.local/share/longrec/logs"
	defaultArtifactDir         = "~/.local/share/longrec/sync"
	defaultCacheDir            = "~/.cache/longrec"
	defaultAPIBind             = "127.0.0.1:7490"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultTimeZone            = "UTC"
	defaultGapToleranceSeconds = 1.0
	defaultDurationWorkers     = 4
	defaultParallelThreshold   = 16
	defaultWatchDebounceMillis = 500
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:      defaultLogDir,
			ArtifactDir: defaultArtifactDir,
			CacheDir:    defaultCacheDir,
			APIBind:     defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Sync: Sync{
			TimeZone:            defaultTimeZone,
			GapToleranceSeconds: defaultGapToleranceSeconds,
			DurationWorkers:     defaultDurationWorkers,
			ParallelThreshold:   defaultParallelThreshold,
			PersistArtifacts:    true,
			Prefetch:            true,
			WatchDebounceMillis: defaultWatchDebounceMillis,
		},
	}
}
