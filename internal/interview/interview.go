// Package interview coordinates one live mock interview: it acquires the
// camera and microphone, connects the transport, starts audio capture and
// frame sampling once the service is ready, and tears everything down again
// in reverse order.
//
// A [Session] is driven by a single entry point, [Session.Toggle], and exposes
// its state through accessors and host [Events]. Every Toggle that starts an
// interview creates a fresh run: its own audio context, playback controller,
// transport session, capture pipeline and half-duplex speaking flag. Nothing
// is shared between runs, so a retry after a failure is simply another Toggle.
package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/cruso003/JobGenie-sub001/internal/capture"
	"github.com/cruso003/JobGenie-sub001/internal/observe"
	"github.com/cruso003/JobGenie-sub001/internal/playback"
	"github.com/cruso003/JobGenie-sub001/internal/sampler"
	"github.com/cruso003/JobGenie-sub001/pkg/audio"
	"github.com/cruso003/JobGenie-sub001/pkg/media"
	"github.com/cruso003/JobGenie-sub001/pkg/provider/live"
	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

// DefaultStatsInterval is how often [Events.OnStats] fires while streaming.
const DefaultStatsInterval = time.Second

// ErrClosed is returned by Toggle after Close.
var ErrClosed = errors.New("interview: session closed")

// Authorizer decides whether the user may start another interview. Returning
// false, or an error, denies the start.
type Authorizer func(ctx context.Context, ic types.InterviewContext) (bool, error)

// Events are notifications to the host. Every field is optional. Events may
// arrive on any goroutine and must not block; they must not call Toggle or
// Close synchronously.
type Events struct {
	// OnTranscription carries fragments of the user's recognised speech.
	OnTranscription func(text string)

	// OnAITranscription carries fragments of the interviewer's reply.
	OnAITranscription func(text string)

	// OnConnectionError carries the user-facing message of a failure.
	OnConnectionError func(message string)

	// OnTimerRunning reports whether the interview clock should run.
	OnTimerRunning func(running bool)

	// OnStatusChanged reports every status transition.
	OnStatusChanged func(status types.Status)

	// OnInputLevel reports the microphone level, 0–100.
	OnInputLevel func(level int)

	// OnOutputLevel reports the interviewer's playback level, 0–100.
	OnOutputLevel func(level int)

	// OnStats reports streaming counters once per stats interval.
	OnStats func(Stats)
}

// Config wires a Session to its collaborators.
type Config struct {
	// Context describes the interview. Type and Role are required.
	Context types.InterviewContext

	// Authorize is consulted before any device or network is touched.
	// Nil allows every start.
	Authorize Authorizer

	// Device opens camera and microphone tracks. Required.
	Device media.Device

	// Constraints are the acquisition constraints. The audio format doubles
	// as the capture format sent to the service. Zero value uses
	// [media.DefaultConstraints].
	Constraints media.Constraints

	// Provider creates transport sessions. Required.
	Provider live.Provider

	// Speaker receives synthesised audio. Required. It outlives every run.
	Speaker playback.Sink

	// PlaybackFormat is the format of synthesised audio. Default 24 kHz mono.
	PlaybackFormat audio.Format

	// PlaybackOptions configure each run's playback controller.
	PlaybackOptions []playback.Option

	// CaptureOptions configure each run's capture pipeline.
	CaptureOptions []capture.Option

	// Sampler configures camera frame sampling.
	Sampler sampler.Config

	// MicTap, if set, receives every microphone frame sent to the service.
	MicTap func(pcm []byte)

	// Events are delivered to the host.
	Events Events

	// Metrics records instruments. Nil uses [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// StatsInterval is the OnStats period. Default [DefaultStatsInterval].
	StatsInterval time.Duration
}

func (c Config) validate() error {
	var errs []error
	if c.Device == nil {
		errs = append(errs, errors.New("device is required"))
	}
	if c.Provider == nil {
		errs = append(errs, errors.New("provider is required"))
	}
	if c.Speaker == nil {
		errs = append(errs, errors.New("speaker is required"))
	}
	if err := c.Context.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Stats are the counters of the current run.
type Stats struct {
	SessionID       string
	AudioChunksSent uint64
	ImageChunksSent uint64
	FramesGated     uint64
	ChunksDropped   uint64
	Elapsed         time.Duration
}

// Session is the interview state machine. Safe for concurrent use.
type Session struct {
	cfg     Config
	metrics *observe.Metrics

	mu       sync.Mutex
	status   types.Status
	connErr  error
	run      *run
	starting bool
	closed   bool

	// aborts tracks teardowns started from callbacks.
	aborts sync.WaitGroup

	captureStarts atomic.Int64
	captureStops  atomic.Int64
}

// New validates cfg and returns an idle Session.
func New(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("interview: %w", err)
	}
	if cfg.Constraints == (media.Constraints{}) {
		cfg.Constraints = media.DefaultConstraints()
	}
	if cfg.PlaybackFormat == (audio.Format{}) {
		cfg.PlaybackFormat = audio.Format{SampleRate: 24000, Channels: 1}
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = DefaultStatsInterval
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Session{
		cfg:     cfg,
		metrics: m,
		status:  types.StatusDisconnected,
	}, nil
}

// Toggle starts the interview when idle and stops it when streaming.
//
// Starting consults the authorizer, acquires media, builds the run and
// connects the transport; capture and sampling begin only when the service
// signals ready. A Toggle while a start is still in flight is a no-op. A
// start after a failure first waits for the failed run to release its
// devices, so Toggle must not be called from an event callback.
//
// Stopping tears the run down in reverse order of acquisition and returns
// once no timer, capture goroutine or transport remains.
func (s *Session) Toggle(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.starting:
		s.mu.Unlock()
		return nil
	case s.run != nil:
		r := s.run
		s.run = nil
		s.mu.Unlock()
		return s.stop(r)
	}
	s.starting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}()

	// A failed run may still hold the camera and microphone.
	s.aborts.Wait()
	return s.start(ctx)
}

func (s *Session) start(ctx context.Context) error {
	ctx, span := observe.StartSpan(ctx, "interview.start")
	defer span.End()
	span.SetAttributes(
		attribute.String("interview.type", s.cfg.Context.Type),
		attribute.String("interview.role", s.cfg.Context.Role),
	)

	fail := func(err error, status types.Status) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordSessionError(ctx, types.KindOf(err).String())
		s.setFailure(err, status)
		return err
	}

	if s.cfg.Authorize != nil {
		ok, err := s.cfg.Authorize(ctx, s.cfg.Context)
		if err != nil || !ok {
			return fail(types.NewError(types.KindLimit, "authorize", "", err), types.StatusDisconnected)
		}
	}

	s.clearError()
	s.setStatus(types.StatusConnecting)

	stream, err := media.Acquire(ctx, s.cfg.Device, s.cfg.Constraints)
	if err != nil {
		return fail(err, types.StatusDisconnected)
	}

	r := s.newRun(ctx, stream)
	observe.SessionLogger(ctx, r.id).Info("interview: media acquired, connecting", "context", s.cfg.Context.String())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = r.teardown()
		s.setStatus(types.StatusDisconnected)
		return ErrClosed
	}
	s.run = r
	s.mu.Unlock()

	r.connectAt = time.Now()
	if err := r.transport.Connect(ctx, s.cfg.Context); err != nil {
		s.mu.Lock()
		owned := s.run == r
		if owned {
			s.run = nil
		}
		s.mu.Unlock()
		if !owned {
			// A callback already failed and tore the run down.
			return s.ConnectionError()
		}
		if terr := r.teardown(); terr != nil {
			observe.SessionLogger(ctx, r.id).Warn("interview: cleanup after failed connect", "err", terr)
		}
		if types.KindOf(err) == types.KindUnknown {
			err = types.NewError(types.KindTransport, "connect", "", err)
		}
		return fail(err, types.StatusError)
	}
	return nil
}

// stop tears down r at the user's request.
func (s *Session) stop(r *run) error {
	r.halt()
	err := r.teardown()
	s.finishRun(r)
	s.setStatus(types.StatusDisconnected)
	s.emitTimer(false)
	if err != nil {
		observe.SessionLogger(r.ctx, r.id).Warn("interview: teardown", "err", err)
	}
	return err
}

// abort fails r from a callback. The run stops producing chunks immediately;
// the teardown runs on its own goroutine because callbacks must not
// disconnect the transport synchronously.
func (s *Session) abort(r *run, err error, status types.Status) {
	s.mu.Lock()
	if s.run != r {
		s.mu.Unlock()
		return
	}
	s.run = nil
	s.aborts.Add(1)
	s.mu.Unlock()

	r.halt()
	observe.SessionLogger(r.ctx, r.id).Warn("interview: aborting", "err", err, "status", status)
	s.metrics.RecordSessionError(r.ctx, types.KindOf(err).String())
	s.recordFailure(err, status)

	go func() {
		defer s.aborts.Done()
		if terr := r.teardown(); terr != nil {
			observe.SessionLogger(r.ctx, r.id).Warn("interview: teardown", "err", terr)
		}
		s.finishRun(r)
		s.emitTimer(false)
		s.notifyFailure(err)
	}()
}

func (s *Session) finishRun(r *run) {
	starts, stops := r.pipeline.Counts()
	s.captureStarts.Add(int64(starts))
	s.captureStops.Add(int64(stops))
	if r.readyAt.Load() != nil {
		r.reportGated(r.stats().FramesGated)
		s.metrics.ActiveSessions.Add(r.ctx, -1)
		s.metrics.SessionDuration.Record(r.ctx, r.elapsed().Seconds())
	}
}

// Close tears down any running interview and waits for pending teardowns.
// Toggle fails afterwards. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.aborts.Wait()
		return nil
	}
	s.closed = true
	r := s.run
	s.run = nil
	s.mu.Unlock()

	var err error
	if r != nil {
		err = s.stop(r)
	}
	s.aborts.Wait()
	return err
}

// ── State ───────────────────────────────────────────────────────────────────

// Status returns the connection status.
func (s *Session) Status() types.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ConnectionError returns the last failure, or nil. A new start clears it.
func (s *Session) ConnectionError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connErr
}

// IsStreaming reports whether a run exists, from media acquisition until
// teardown.
func (s *Session) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil
}

// SessionID returns the ID of the current run, or "".
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return ""
	}
	return s.run.id
}

// StartedAt returns when the current run became ready; zero before that.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return time.Time{}
	}
	if t := r.readyAt.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// Stats returns the counters of the current run; zero when idle.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return Stats{}
	}
	return r.stats()
}

// CaptureCounts returns how many capture handles were started and stopped
// over the session's finished runs.
func (s *Session) CaptureCounts() (starts, stops int) {
	return int(s.captureStarts.Load()), int(s.captureStops.Load())
}

func (s *Session) setStatus(st types.Status) {
	s.mu.Lock()
	changed := s.status != st
	s.status = st
	s.mu.Unlock()
	if changed && s.cfg.Events.OnStatusChanged != nil {
		s.cfg.Events.OnStatusChanged(st)
	}
}

func (s *Session) clearError() {
	s.mu.Lock()
	s.connErr = nil
	s.mu.Unlock()
}

// setFailure records err, moves to status and surfaces the message.
func (s *Session) setFailure(err error, status types.Status) {
	s.recordFailure(err, status)
	s.notifyFailure(err)
}

func (s *Session) recordFailure(err error, status types.Status) {
	s.mu.Lock()
	s.connErr = err
	s.mu.Unlock()
	s.setStatus(status)
}

func (s *Session) notifyFailure(err error) {
	if s.cfg.Events.OnConnectionError != nil {
		s.cfg.Events.OnConnectionError(types.UserMessage(err))
	}
}

func (s *Session) emitTimer(running bool) {
	if s.cfg.Events.OnTimerRunning != nil {
		s.cfg.Events.OnTimerRunning(running)
	}
}

func newSessionID() string { return uuid.NewString() }
