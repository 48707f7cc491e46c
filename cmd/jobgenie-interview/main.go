// Command jobgenie-interview runs a live mock interview against the Gemini
// Live API using the local camera, microphone and speaker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"github.com/cruso003/JobGenie-sub001/internal/app"
	"github.com/cruso003/JobGenie-sub001/internal/config"
	"github.com/cruso003/JobGenie-sub001/internal/observe"
	"github.com/cruso003/JobGenie-sub001/pkg/audio"
	"github.com/cruso003/JobGenie-sub001/pkg/media"
	"github.com/cruso003/JobGenie-sub001/pkg/media/native"
	"github.com/cruso003/JobGenie-sub001/pkg/provider/live"
	"github.com/cruso003/JobGenie-sub001/pkg/provider/live/gemini"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	autoStart := flag.Bool("start", false, "start the interview immediately")
	watch := flag.Bool("watch", true, "reload log level and limits when the config file changes")
	flag.Parse()

	// ── Environment ───────────────────────────────────────────────────────────
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "jobgenie: load %s: %v\n", *envFile, err)
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "jobgenie: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "jobgenie: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Slog())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("jobgenie starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		Registerer:     reg,
	})
	if err != nil {
		slog.Error("failed to init telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	registry := config.NewRegistry()
	registerBuiltins(registry, cfg)

	device, err := registry.CreateMedia(cfg.Media)
	if err != nil {
		slog.Error("failed to open media backend", "backend", cfg.Media.Backend, "err", err)
		return 1
	}
	defer closeIfCloser("media backend", device)

	provider, err := registry.CreateLive(cfg.Provider)
	if err != nil {
		slog.Error("failed to create live provider", "name", cfg.Provider.Name, "err", err)
		return 1
	}

	speaker, err := native.NewSpeaker(audio.Format{SampleRate: cfg.Playback.SampleRate, Channels: 1}, cfg.Playback.Backlog)
	if err != nil {
		slog.Error("failed to open speaker", "err", err)
		return 1
	}
	defer closeIfCloser("speaker", speaker)

	// ── Application ───────────────────────────────────────────────────────────
	opts := []app.Option{
		app.WithMetrics(metrics),
		app.WithGatherer(reg),
		app.WithLevelVar(level),
		app.WithConsole(os.Stdin, os.Stdout),
	}
	if *autoStart {
		opts = append(opts, app.WithAutoStart())
	}
	application, err := app.New(cfg, app.Providers{Device: device, Live: provider, Speaker: speaker}, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	if *watch {
		w, err := config.NewWatcher(*configPath, application.ApplyConfig)
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	printStartupSummary(cfg)

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func registerBuiltins(reg *config.Registry, cfg *config.Config) {
	reg.RegisterLive("gemini-live", func(pc config.ProviderConfig) (live.Provider, error) {
		opts := []gemini.Option{gemini.WithInputSampleRate(cfg.Media.SampleRate)}
		if pc.Model != "" {
			opts = append(opts, gemini.WithModel(pc.Model))
		}
		if pc.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(pc.BaseURL))
		}
		if pc.Voice != "" {
			opts = append(opts, gemini.WithVoice(pc.Voice))
		}
		if pc.Instructions != "" {
			if _, err := gemini.ParseInstructions(pc.Instructions); err != nil {
				return nil, err
			}
			opts = append(opts, gemini.WithInstructions(pc.Instructions))
		}
		return gemini.New(pc.APIKey, opts...), nil
	})

	reg.RegisterMedia("native", func(config.MediaConfig) (media.Device, error) {
		return native.NewDevice()
	})
}

func closeIfCloser(what string, v any) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		slog.Warn("close failed", "what", what, "err", err)
	}
}

func printStartupSummary(cfg *config.Config) {
	limit := "unlimited"
	if n := cfg.Limits.MaxInterviewsPerDay; n > 0 {
		limit = fmt.Sprintf("%d per day", n)
	}
	fmt.Println("╔═══════════════════════════════════════════╗")
	fmt.Println("║       JobGenie interview, startup summary ║")
	fmt.Println("╠═══════════════════════════════════════════╣")
	fmt.Printf("║  Provider   : %-27s ║\n", cfg.Provider.Name)
	fmt.Printf("║  Interview  : %-27s ║\n", truncate(cfg.Interview.Type+" / "+cfg.Interview.Role, 27))
	if cfg.Interview.Company != "" {
		fmt.Printf("║  Company    : %-27s ║\n", truncate(cfg.Interview.Company, 27))
	}
	fmt.Printf("║  Media      : %-27s ║\n", fmt.Sprintf("%s %dx%d %d Hz", cfg.Media.Backend, cfg.Media.Width, cfg.Media.Height, cfg.Media.SampleRate))
	fmt.Printf("║  Limit      : %-27s ║\n", limit)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr: %-27s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════════╝")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
