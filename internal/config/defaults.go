package config

const (
	defaultDataDir          = "~/.local/share/treklist"
	defaultCacheDir         = "~/.cache/treklist"
	defaultScanMaxDepth     = 8
	defaultRecoveryDepth    = 6
	defaultWatcherDebounce  = 500
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultWatcherEnabled   = true
	defaultFollowSymlinks   = false
)

func defaultExtensions() []string {
	return []string{".mp3", ".flac", ".m4a", ".ogg", ".opus", ".wav", ".aiff"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			CacheDir: defaultCacheDir,
		},
		Scan: Scan{
			Extensions:     defaultExtensions(),
			MaxDepth:       defaultScanMaxDepth,
			FollowSymlinks: defaultFollowSymlinks,
		},
		Resolver: Resolver{
			RecoveryMaxDepth: defaultRecoveryDepth,
		},
		Watcher: Watcher{
			Enabled:    defaultWatcherEnabled,
			DebounceMS: defaultWatcherDebounce,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
