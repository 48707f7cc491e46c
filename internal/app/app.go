// Package app wires the interview host: configuration, the usage limiter,
// the interview session, per-interview artifacts (transcript and recordings),
// the HTTP observability endpoints and the console command loop.
//
// New builds everything synchronously; Run serves until the context is
// cancelled or the user quits; Shutdown tears everything down in order.
//
// For tests, inject doubles through [Providers] and the functional options.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/cruso003/JobGenie-sub001/internal/capture"
	"github.com/cruso003/JobGenie-sub001/internal/config"
	"github.com/cruso003/JobGenie-sub001/internal/interview"
	"github.com/cruso003/JobGenie-sub001/internal/observe"
	"github.com/cruso003/JobGenie-sub001/internal/playback"
	"github.com/cruso003/JobGenie-sub001/internal/usage"
	"github.com/cruso003/JobGenie-sub001/pkg/audio"
	"github.com/cruso003/JobGenie-sub001/pkg/media"
	"github.com/cruso003/JobGenie-sub001/pkg/provider/live"
	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

// defaultUserID keys the usage limiter when the config names no user.
const defaultUserID = "local"

// shutdownTimeout bounds the HTTP server shutdown.
const shutdownTimeout = 5 * time.Second

// Providers holds the device-facing collaborators. Populated by main via the
// config registry.
type Providers struct {
	Device  media.Device
	Live    live.Provider
	Speaker playback.Sink
}

// App owns the lifetime of every host subsystem.
type App struct {
	cfg       *config.Config
	providers Providers

	session   *interview.Session
	limiter   *usage.Limiter
	artifacts *artifacts
	console   *console
	metrics   *observe.Metrics
	gatherer  prometheus.Gatherer
	level     *slog.LevelVar

	input     io.Reader
	autoStart bool

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics sets the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithGatherer sets the registry served on /metrics. Default:
// prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *App) { a.gatherer = g }
}

// WithLevelVar lets config reloads change the log level.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithConsole sets the command input and the event output. Default: no
// command input and output discarded.
func WithConsole(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.input = in
		a.console = newConsole(out)
	}
}

// WithAutoStart starts the interview as soon as Run begins.
func WithAutoStart() Option {
	return func(a *App) { a.autoStart = true }
}

// WithLimiter injects a usage limiter instead of creating one from config.
func WithLimiter(l *usage.Limiter) Option {
	return func(a *App) { a.limiter = l }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg and providers.
func New(cfg *config.Config, providers Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		console:   newConsole(io.Discard),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.gatherer == nil {
		a.gatherer = prometheus.DefaultGatherer
	}
	if a.limiter == nil {
		a.limiter = usage.New(usage.Config{MaxPerDay: cfg.Limits.MaxInterviewsPerDay})
	}

	constraints := cfg.Media.Constraints()
	playbackFormat := audio.Format{SampleRate: cfg.Playback.SampleRate, Channels: 1}
	a.artifacts = newArtifacts(cfg.Transcript.Dir, cfg.Recording.Dir, constraints.Audio.Format(), playbackFormat)

	sess, err := interview.New(a.sessionConfig(constraints, playbackFormat))
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.session = sess
	return a, nil
}

func (a *App) sessionConfig(constraints media.Constraints, playbackFormat audio.Format) interview.Config {
	cfg := a.cfg
	userID := cfg.Interview.UserID
	if userID == "" {
		userID = defaultUserID
	}

	playbackOpts := []playback.Option{playback.WithTick(cfg.Playback.Tick)}
	if cfg.Playback.IdleGrace > 0 {
		playbackOpts = append(playbackOpts, playback.WithIdleGrace(cfg.Playback.IdleGrace))
	}
	var micTap func([]byte)
	if a.artifacts.recording() {
		playbackOpts = append(playbackOpts, playback.WithTap(a.artifacts.modelTap))
		micTap = a.artifacts.micTap
	}

	return interview.Config{
		Context:         cfg.Interview.Context(),
		Authorize:       a.limiter.Authorizer(userID),
		Device:          a.providers.Device,
		Constraints:     constraints,
		Provider:        a.providers.Live,
		Speaker:         a.providers.Speaker,
		PlaybackFormat:  playbackFormat,
		PlaybackOptions: playbackOpts,
		CaptureOptions:  []capture.Option{capture.WithBufferSize(cfg.Capture.BufferSize)},
		Sampler:         cfg.Video.Sampler(),
		MicTap:          micTap,
		Events:          a.events(),
		Metrics:         a.metrics,
		StatsInterval:   cfg.Telemetry.StatsInterval,
	}
}

// events routes session notifications to the console and the artifacts.
func (a *App) events() interview.Events {
	return interview.Events{
		OnTranscription: func(text string) {
			a.transcribed(types.SpeakerHuman, text)
		},
		OnAITranscription: func(text string) {
			a.transcribed(types.SpeakerAI, text)
		},
		OnConnectionError: func(message string) {
			a.console.failure(message, a.session.ConnectionError())
		},
		OnTimerRunning: func(running bool) {
			if running {
				a.artifacts.open(a.session.SessionID())
				a.console.printf("interview started (session %s)", a.session.SessionID())
				return
			}
			a.artifacts.closeAsync()
			a.console.printf("interview ended")
		},
		OnStatusChanged: func(st types.Status) {
			a.console.printf("status: %s", st)
		},
		OnStats: func(st interview.Stats) {
			slog.Debug("interview stats",
				"session_id", st.SessionID,
				"audio_sent", st.AudioChunksSent,
				"images_sent", st.ImageChunksSent,
				"frames_gated", st.FramesGated,
				"dropped", st.ChunksDropped,
				"elapsed", st.Elapsed.Round(time.Second))
		},
	}
}

func (a *App) transcribed(sp types.Speaker, text string) {
	a.artifacts.add(types.TranscriptionEvent{Speaker: sp, Text: text, Timestamp: time.Now()})
	label := "You"
	if sp == types.SpeakerAI {
		label = "Interviewer"
	}
	a.console.fragment(label, text)
}

// Session returns the interview session.
func (a *App) Session() *interview.Session { return a.session }

// ─── Run ─────────────────────────────────────────────────────────────────────

var errQuit = errors.New("app: quit")

// Run serves the HTTP endpoints (when configured) and the console until ctx
// is cancelled or the user quits.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Server.ListenAddr; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("app: listen %q: %w", addr, err)
		}
		srv := &http.Server{Handler: a.Handler(), ReadHeaderTimeout: 5 * time.Second}
		a.mu.Lock()
		a.listener, a.server = ln, srv
		a.mu.Unlock()
		slog.Info("http server listening", "addr", ln.Addr().String())

		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if a.autoStart {
		if err := a.session.Toggle(gctx); err != nil {
			slog.Warn("auto start failed", "err", err)
		}
	}

	g.Go(func() error { return a.commandLoop(gctx) })

	err := g.Wait()
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

// Addr returns the HTTP listener address once Run started serving, or "".
func (a *App) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// ApplyConfig applies the hot-reloadable part of a config change.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Slog())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.LimitsChanged {
		a.limiter.SetLimit(d.NewLimits.MaxInterviewsPerDay)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops any running interview, flushes the artifacts and closes the
// HTTP server. It respects the context deadline.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		if err := a.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app: close session: %w", err))
		}

		done := make(chan error, 1)
		go func() { done <- a.artifacts.wait() }()
		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			slog.Warn("shutdown deadline exceeded while flushing artifacts")
			errs = append(errs, ctx.Err())
		}

		a.mu.Lock()
		srv := a.server
		a.mu.Unlock()
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("app: http shutdown: %w", err))
			}
		}
		slog.Info("shutdown complete")
	})
	return errors.Join(errs...)
}
