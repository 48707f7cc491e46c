// Package config provides the configuration schema, loader, provider registry
// and file watcher for the interview host.
package config

import (
	"log/slog"
	"time"

	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to a [slog.Level]. Unknown levels map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration, typically loaded with [Load].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Provider   ProviderConfig   `yaml:"provider"`
	Interview  InterviewConfig  `yaml:"interview"`
	Media      MediaConfig      `yaml:"media"`
	Capture    CaptureConfig    `yaml:"capture"`
	Video      VideoConfig      `yaml:"video"`
	Playback   PlaybackConfig   `yaml:"playback"`
	Limits     LimitsConfig     `yaml:"limits"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Recording  RecordingConfig  `yaml:"recording"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig holds the HTTP listener and logging settings.
type ServerConfig struct {
	// ListenAddr serves /metrics, /healthz and /readyz. Empty disables the
	// listener.
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`
}

// ProviderConfig selects and configures the live service. Name is looked up
// in the [Registry].
type ProviderConfig struct {
	// Name selects the registered provider, e.g. "gemini-live".
	Name string `yaml:"name"`

	// APIKey authenticates against the service. Usually "${GEMINI_API_KEY}".
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the service endpoint.
	BaseURL string `yaml:"base_url"`

	Model string `yaml:"model"`

	// Voice is a prebuilt voice name, e.g. "Puck".
	Voice string `yaml:"voice"`

	// Instructions overrides the interviewer system instruction template.
	Instructions string `yaml:"instructions"`
}

// InterviewConfig describes the interview to run.
type InterviewConfig struct {
	Type    string `yaml:"type"`
	Role    string `yaml:"role"`
	Company string `yaml:"company"`

	// UserID keys the usage limiter.
	UserID string `yaml:"user_id"`
}

// Context converts c into the domain type.
func (c InterviewConfig) Context() types.InterviewContext {
	return types.InterviewContext{Type: c.Type, Role: c.Role, Company: c.Company}
}

// MediaConfig selects the device backend and acquisition constraints.
type MediaConfig struct {
	// Backend selects the registered media backend, e.g. "native".
	Backend string `yaml:"backend"`

	// Camera is the camera device ID; empty selects the default camera.
	Camera string `yaml:"camera"`

	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`

	// Processing flags are requests; backends without support ignore them.
	// Nil means enabled.
	EchoCancellation *bool `yaml:"echo_cancellation"`
	NoiseSuppression *bool `yaml:"noise_suppression"`
	AutoGainControl  *bool `yaml:"auto_gain_control"`
}

// CaptureConfig tunes the microphone pipeline.
type CaptureConfig struct {
	// BufferSize is the frame length in samples.
	BufferSize int `yaml:"buffer_size"`
}

// VideoConfig tunes camera frame sampling.
type VideoConfig struct {
	Interval time.Duration `yaml:"interval"`
	Quality  int           `yaml:"quality"`
	MaxWidth int           `yaml:"max_width"`
}

// PlaybackConfig tunes interviewer audio playback.
type PlaybackConfig struct {
	SampleRate int           `yaml:"sample_rate"`
	Tick       time.Duration `yaml:"tick"`
	IdleGrace  time.Duration `yaml:"idle_grace"`

	// Backlog bounds how much audio the speaker buffers ahead.
	Backlog time.Duration `yaml:"backlog"`
}

// LimitsConfig bounds usage per user. Hot-reloadable.
type LimitsConfig struct {
	// MaxInterviewsPerDay is the per-user daily quota. Zero means unlimited.
	MaxInterviewsPerDay int `yaml:"max_interviews_per_day"`
}

// TranscriptConfig controls transcript persistence.
type TranscriptConfig struct {
	// Dir receives one JSONL file per interview. Empty disables writing.
	Dir string `yaml:"dir"`
}

// RecordingConfig controls debug WAV recordings.
type RecordingConfig struct {
	// Dir receives mic and model WAV files per interview. Empty disables
	// recording.
	Dir string `yaml:"dir"`
}

// TelemetryConfig controls periodic stats.
type TelemetryConfig struct {
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// Defaults.
const (
	DefaultProvider     = "gemini-live"
	DefaultBackend      = "native"
	DefaultSampleRate   = 24000
	DefaultWidth        = 640
	DefaultHeight       = 480
	DefaultBufferSize   = 2048
	DefaultVideoQuality = 80
)

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = DefaultProvider
	}
	if cfg.Media.Backend == "" {
		cfg.Media.Backend = DefaultBackend
	}
	if cfg.Media.Width == 0 {
		cfg.Media.Width = DefaultWidth
	}
	if cfg.Media.Height == 0 {
		cfg.Media.Height = DefaultHeight
	}
	if cfg.Media.SampleRate == 0 {
		cfg.Media.SampleRate = DefaultSampleRate
	}
	if cfg.Media.Channels == 0 {
		cfg.Media.Channels = 1
	}
	if cfg.Capture.BufferSize == 0 {
		cfg.Capture.BufferSize = DefaultBufferSize
	}
	if cfg.Video.Interval == 0 {
		cfg.Video.Interval = time.Second
	}
	if cfg.Video.Quality == 0 {
		cfg.Video.Quality = DefaultVideoQuality
	}
	if cfg.Playback.SampleRate == 0 {
		cfg.Playback.SampleRate = DefaultSampleRate
	}
	if cfg.Playback.Tick == 0 {
		cfg.Playback.Tick = 50 * time.Millisecond
	}
	if cfg.Playback.Backlog == 0 {
		cfg.Playback.Backlog = 250 * time.Millisecond
	}
	if cfg.Telemetry.StatsInterval == 0 {
		cfg.Telemetry.StatsInterval = time.Second
	}
}

// enabled reads an optional flag that defaults to true.
func enabled(b *bool) bool { return b == nil || *b }
