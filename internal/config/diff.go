package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	LimitsChanged bool
	NewLimits     LimitsConfig

	// RestartRequired lists sections that changed but only take effect after
	// a restart.
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Limits != new.Limits {
		d.LimitsChanged = true
		d.NewLimits = new.Limits
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Provider != new.Provider {
		d.RestartRequired = append(d.RestartRequired, "provider")
	}
	if old.Media.Backend != new.Media.Backend || old.Media.Camera != new.Media.Camera {
		d.RestartRequired = append(d.RestartRequired, "media")
	}
	if old.Playback != new.Playback {
		d.RestartRequired = append(d.RestartRequired, "playback")
	}
	return d
}

// Empty reports whether nothing tracked changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.LimitsChanged && len(d.RestartRequired) == 0
}
