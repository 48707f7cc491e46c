package interview

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cruso003/JobGenie-sub001/internal/capture"
	"github.com/cruso003/JobGenie-sub001/internal/observe"
	"github.com/cruso003/JobGenie-sub001/internal/playback"
	"github.com/cruso003/JobGenie-sub001/internal/sampler"
	"github.com/cruso003/JobGenie-sub001/pkg/media"
	"github.com/cruso003/JobGenie-sub001/pkg/provider/live"
	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

// run owns every resource of one interview attempt.
type run struct {
	s      *Session
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	stream    *media.Stream
	actx      *capture.Context
	player    *playback.Controller
	transport live.Session
	pipeline  *capture.Pipeline
	frames    *sampler.Sampler

	// speaking is the half-duplex gate: set only from the transport's
	// speaking-state callback, read by the capture pipeline per frame.
	speaking atomic.Bool

	// halted drops every callback once the run is being torn down.
	halted atomic.Bool

	mu        sync.Mutex
	ready     bool
	capture   *capture.Handle
	sampling  *sampler.Handle
	statsStop chan struct{}
	statsWG   sync.WaitGroup

	connectAt time.Time
	readyAt   atomic.Pointer[time.Time]

	audioSent atomic.Uint64
	imageSent atomic.Uint64
	dropped   atomic.Uint64

	// gatedReported is the share of gated frames already counted in metrics.
	gatedReported atomic.Uint64
}

func (s *Session) newRun(ctx context.Context, stream *media.Stream) *run {
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{
		s:      s,
		id:     newSessionID(),
		ctx:    rctx,
		cancel: cancel,
		stream: stream,
	}

	r.actx = capture.NewContext(s.cfg.Constraints.Audio.Format())
	r.pipeline = capture.New(capture.GateFunc(r.speaking.Load), s.cfg.CaptureOptions...)
	r.frames = sampler.New(s.cfg.Sampler, func(d time.Duration, _ int) {
		s.metrics.FrameEncodeDuration.Record(r.ctx, d.Seconds())
	})
	r.player = playback.New(s.cfg.Speaker, s.cfg.PlaybackFormat, s.cfg.PlaybackOptions...)
	r.transport = s.cfg.Provider.NewSession(r.player, r.callbacks())
	return r
}

func (r *run) callbacks() live.Callbacks {
	ev := r.s.cfg.Events
	return live.Callbacks{
		OnReady: r.onReady,
		OnTextReceived: func(text string) {
			if !r.halted.Load() && ev.OnAITranscription != nil {
				ev.OnAITranscription(text)
			}
		},
		OnUserTranscription: func(text string) {
			if !r.halted.Load() && ev.OnTranscription != nil {
				ev.OnTranscription(text)
			}
		},
		OnSpeakingStateChanged: func(speaking bool) {
			r.speaking.Store(speaking)
		},
		OnOutputAudioLevel: func(level int) {
			if !r.halted.Load() && ev.OnOutputLevel != nil {
				ev.OnOutputLevel(level)
			}
		},
		OnError: func(message string) {
			err := types.NewError(types.KindTransport, "receive", message, nil)
			r.s.abort(r, err, types.StatusError)
		},
	}
}

// onReady starts capture and sampling. It runs on the transport's receive
// goroutine, or inside Connect for transports that are ready immediately.
func (r *run) onReady() {
	log := observe.SessionLogger(r.ctx, r.id)

	r.mu.Lock()
	if r.halted.Load() || r.ready {
		r.mu.Unlock()
		return
	}
	r.ready = true

	now := time.Now()
	r.readyAt.Store(&now)
	r.s.metrics.TransportReadyDuration.Record(r.ctx, now.Sub(r.connectAt).Seconds())
	r.s.metrics.ActiveSessions.Add(r.ctx, 1)

	h, err := r.pipeline.Start(r.ctx, r.actx, r.stream.Audio(), capture.Sinks{
		Frame: r.sendAudio,
		Level: r.meterInput,
		Ended: func(err error) { r.s.abort(r, err, types.StatusError) },
	})
	if err != nil {
		r.mu.Unlock()
		log.Error("interview: capture setup failed", "err", err)
		r.s.abort(r, err, types.StatusDisconnected)
		return
	}
	r.capture = h
	r.sampling = r.frames.Start(r.stream.Video(), r.sendImage)
	r.startStats()
	r.mu.Unlock()

	log.Info("interview: ready", "ready_after", now.Sub(r.connectAt))
	if r.halted.Load() {
		return
	}
	r.s.setStatus(types.StatusConnected)
	r.s.emitTimer(true)
}

func (r *run) sendAudio(pcm []byte, _ float64) {
	if r.halted.Load() {
		return
	}
	if tap := r.s.cfg.MicTap; tap != nil {
		tap(pcm)
	}
	r.send(types.MediaChunk{MIMEType: types.MIMEAudioPCM, Data: base64.StdEncoding.EncodeToString(pcm)}, "audio", &r.audioSent)
}

func (r *run) sendImage(jpegB64 string) {
	if r.halted.Load() {
		return
	}
	r.send(types.MediaChunk{MIMEType: types.MIMEImageJPEG, Data: jpegB64}, "image", &r.imageSent)
}

func (r *run) send(c types.MediaChunk, kind string, sent *atomic.Uint64) {
	ok := r.transport.SendMediaChunk(c.Data, c.MIMEType)
	if ok {
		sent.Add(1)
	} else {
		r.dropped.Add(1)
	}
	r.s.metrics.RecordChunk(r.ctx, kind, ok)
}

func (r *run) meterInput(level float64) {
	if !r.halted.Load() && r.s.cfg.Events.OnInputLevel != nil {
		r.s.cfg.Events.OnInputLevel(types.LevelPercent(level))
	}
}

// ── Stats ───────────────────────────────────────────────────────────────────

// startStats fires OnStats every interval. Caller holds r.mu.
func (r *run) startStats() {
	r.statsStop = make(chan struct{})
	r.statsWG.Add(1)
	go func(stop <-chan struct{}) {
		defer r.statsWG.Done()
		t := time.NewTicker(r.s.cfg.StatsInterval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				st := r.stats()
				r.reportGated(st.FramesGated)
				if r.s.cfg.Events.OnStats != nil && !r.halted.Load() {
					r.s.cfg.Events.OnStats(st)
				}
			}
		}
	}(r.statsStop)
}

// reportGated adds the gated frames not yet counted to the metric.
func (r *run) reportGated(total uint64) {
	prev := r.gatedReported.Swap(total)
	if total > prev {
		r.s.metrics.FramesGated.Add(r.ctx, int64(total-prev))
	}
}

func (r *run) stopStats() error {
	r.mu.Lock()
	stop := r.statsStop
	r.statsStop = nil
	r.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	r.statsWG.Wait()
	return nil
}

func (r *run) stats() Stats {
	st := Stats{
		SessionID:       r.id,
		AudioChunksSent: r.audioSent.Load(),
		ImageChunksSent: r.imageSent.Load(),
		ChunksDropped:   r.dropped.Load(),
		Elapsed:         r.elapsed(),
	}
	r.mu.Lock()
	if r.capture != nil {
		st.FramesGated = r.capture.Stats().Gated
	}
	r.mu.Unlock()
	return st
}

func (r *run) elapsed() time.Duration {
	if t := r.readyAt.Load(); t != nil {
		return time.Since(*t)
	}
	return 0
}

// ── Teardown ────────────────────────────────────────────────────────────────

// halt makes every later callback a no-op.
func (r *run) halt() {
	r.mu.Lock()
	r.halted.Store(true)
	r.mu.Unlock()
}

// teardown releases the run in reverse order of acquisition. Every step runs
// even if an earlier one fails or panics; the errors are joined.
func (r *run) teardown() error {
	r.halt()
	r.mu.Lock()
	h, f := r.capture, r.sampling
	r.mu.Unlock()

	steps := []struct {
		name string
		fn   func() error
	}{
		{"stats", r.stopStats},
		{"sampler", func() error { r.frames.Stop(f); return nil }},
		{"capture", func() error { r.pipeline.Stop(h); return nil }},
		{"transport", r.transport.Disconnect},
		{"media tracks", r.stream.Stop},
		{"playback", r.player.Close},
		{"audio context", r.actx.Close},
	}

	var errs []error
	for _, st := range steps {
		if err := guard(st.name, st.fn); err != nil {
			errs = append(errs, err)
		}
	}
	r.cancel()
	return errors.Join(errs...)
}

func guard(step string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("interview: teardown %s: panic: %v", step, p)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("interview: teardown %s: %w", step, err)
	}
	return nil
}
