package config_test

import (
	"slices"
	"testing"

	"github.com/cruso003/JobGenie-sub001/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Limits: config.LimitsConfig{MaxInterviewsPerDay: 3},
	}
	d := config.Diff(cfg, cfg)
	if !d.Empty() {
		t.Errorf("expected empty diff for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.LimitsChanged {
		t.Error("expected LimitsChanged=false")
	}
}

func TestDiff_LimitsChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Limits: config.LimitsConfig{MaxInterviewsPerDay: 3}}
	new := &config.Config{Limits: config.LimitsConfig{MaxInterviewsPerDay: 10}}

	d := config.Diff(old, new)
	if !d.LimitsChanged {
		t.Fatal("expected LimitsChanged=true")
	}
	if d.NewLimits.MaxInterviewsPerDay != 10 {
		t.Errorf("NewLimits: got %d, want 10", d.NewLimits.MaxInterviewsPerDay)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("limits are hot-reloadable, got RestartRequired=%v", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Provider: config.ProviderConfig{Name: "gemini-live", Voice: "Puck"},
		Media:    config.MediaConfig{Backend: "native"},
	}
	new := &config.Config{
		Provider: config.ProviderConfig{Name: "gemini-live", Voice: "Kore"},
		Media:    config.MediaConfig{Backend: "native", Camera: "2"},
	}

	d := config.Diff(old, new)
	for _, want := range []string{"provider", "media"} {
		if !slices.Contains(d.RestartRequired, want) {
			t.Errorf("RestartRequired should contain %q, got %v", want, d.RestartRequired)
		}
	}
	if d.Empty() {
		t.Error("diff should not be empty")
	}
}
