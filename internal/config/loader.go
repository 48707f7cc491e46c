package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/cruso003/JobGenie-sub001/internal/sampler"
	"github.com/cruso003/JobGenie-sub001/pkg/media"
)

// ValidProviderNames lists known names per registry kind. [Validate] warns
// about others.
var ValidProviderNames = map[string][]string{
	"provider": {"gemini-live"},
	"media":    {"native"},
}

// Load reads, expands, decodes and validates the YAML file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expanding ${VAR} references
// from the environment, applies defaults and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.Expand(string(raw), os.Getenv)

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg and returns every problem found, joined.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("provider", cfg.Provider.Name)
	validateProviderName("media", cfg.Media.Backend)
	if cfg.Provider.APIKey == "" {
		slog.Warn("provider.api_key is empty; the live service will reject the connection")
	}

	if cfg.Interview.Type == "" {
		errs = append(errs, errors.New("interview.type is required"))
	}
	if cfg.Interview.Role == "" {
		errs = append(errs, errors.New("interview.role is required"))
	}

	if cfg.Media.Width < 0 || cfg.Media.Height < 0 {
		errs = append(errs, fmt.Errorf("media.width/height %dx%d must not be negative", cfg.Media.Width, cfg.Media.Height))
	}
	if cfg.Media.SampleRate < 8000 || cfg.Media.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("media.sample_rate %d is out of range [8000, 48000]", cfg.Media.SampleRate))
	}
	if cfg.Media.Channels != 1 && cfg.Media.Channels != 2 {
		errs = append(errs, fmt.Errorf("media.channels %d is invalid; valid values: 1, 2", cfg.Media.Channels))
	}

	if cfg.Capture.BufferSize < 128 || cfg.Capture.BufferSize > 16384 {
		errs = append(errs, fmt.Errorf("capture.buffer_size %d is out of range [128, 16384]", cfg.Capture.BufferSize))
	}

	if cfg.Video.Interval < 100_000_000 {
		errs = append(errs, fmt.Errorf("video.interval %s is below the 100ms minimum", cfg.Video.Interval))
	}
	if cfg.Video.Quality < 1 || cfg.Video.Quality > 100 {
		errs = append(errs, fmt.Errorf("video.quality %d is out of range [1, 100]", cfg.Video.Quality))
	}
	if cfg.Video.MaxWidth < 0 {
		errs = append(errs, fmt.Errorf("video.max_width %d must not be negative", cfg.Video.MaxWidth))
	}

	if cfg.Playback.SampleRate < 8000 || cfg.Playback.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("playback.sample_rate %d is out of range [8000, 48000]", cfg.Playback.SampleRate))
	}
	if cfg.Playback.IdleGrace < 0 {
		errs = append(errs, fmt.Errorf("playback.idle_grace %s must not be negative", cfg.Playback.IdleGrace))
	}

	if cfg.Limits.MaxInterviewsPerDay < 0 {
		errs = append(errs, fmt.Errorf("limits.max_interviews_per_day %d must not be negative", cfg.Limits.MaxInterviewsPerDay))
	}

	return errors.Join(errs...)
}

func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or a third-party registration",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// Constraints converts the media section into acquisition constraints.
func (c MediaConfig) Constraints() media.Constraints {
	return media.Constraints{
		Audio: media.AudioConstraints{
			SampleRate:       c.SampleRate,
			Channels:         c.Channels,
			EchoCancellation: enabled(c.EchoCancellation),
			NoiseSuppression: enabled(c.NoiseSuppression),
			AutoGainControl:  enabled(c.AutoGainControl),
		},
		Video: media.VideoConstraints{
			DeviceID: c.Camera,
			Width:    c.Width,
			Height:   c.Height,
		},
	}
}

// Sampler converts the video section into a sampler configuration.
func (c VideoConfig) Sampler() sampler.Config {
	return sampler.Config{Interval: c.Interval, Quality: c.Quality, MaxWidth: c.MaxWidth}
}
