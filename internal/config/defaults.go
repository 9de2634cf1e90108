package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			APIBase:         "http://localhost:8000",
			IntervalMinutes: 5,
			BatchSize:       50,
			TimeoutSeconds:  30,
			Compression:     "none",
		},
		Capture: CaptureConfig{
			QueueCapacity:      1000,
			UseDefaultDenylist: true,
			DenylistDomains:    []string{},
		},
		Storage: StorageConfig{
			Path:       "~/.config/mirrorme",
			SQLiteFile: "mirrorme.db",
		},
		Browser: BrowserConfig{
			Enabled:            true,
			ControlURL:         "",
			Bin:                "",
			Headless:           false,
			PollIntervalMillis: 500,
		},
		Daemon: DaemonConfig{
			Host:           "127.0.0.1",
			Port:           8722,
			MaxRequestSize: 1 << 20,
		},
		Logging: LoggingConfig{
			Level:       "info",
			File:        "",
			Development: false,
		},
		Secrets: SecretsConfig{
			KeyFile:   "identity.key",
			TokenFile: "control.token",
		},
	}
}
