// Package capture converts the live microphone track into fixed-size PCM
// frames for the transport and meters the input level.
//
// Each started [Handle] runs its own goroutine, off the caller's path, that
// reads microphone buffers, re-frames them through a [Worklet] and reports
// every frame's level. Frames are forwarded only while the [Gate] reports
// that the model is silent; while the model speaks they are metered and
// discarded so the model never hears itself through the microphone.
package capture

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/cruso003/JobGenie-sub001/pkg/audio"
	"github.com/cruso003/JobGenie-sub001/pkg/media"
	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

// Gate reports whether outbound microphone audio must be held back.
type Gate interface {
	Speaking() bool
}

// GateFunc adapts a function to [Gate].
type GateFunc func() bool

// Speaking calls f.
func (f GateFunc) Speaking() bool { return f() }

// Sinks receive pipeline output. All fields are optional. Frame and Level
// are called from the handle's goroutine; Ended runs on its own goroutine.
type Sinks struct {
	// Frame receives an ungated PCM frame and its normalised level.
	Frame func(pcm []byte, level float64)

	// Level receives the normalised level of every frame, gated or not.
	Level func(level float64)

	// Ended fires if the microphone track ends while the handle runs.
	Ended func(err error)
}

// Option configures a [Pipeline] during construction.
type Option func(*Pipeline)

// WithLoader replaces the worklet loader.
func WithLoader(l WorkletLoader) Option {
	return func(p *Pipeline) { p.loader = l }
}

// WithBufferSize sets the samples per frame used by the default loader.
func WithBufferSize(n int) Option {
	return func(p *Pipeline) { p.loader = DefaultLoader(n) }
}

// Pipeline starts and stops capture handles. A track has at most one running
// handle at a time. Safe for concurrent use.
type Pipeline struct {
	gate   Gate
	loader WorkletLoader

	group singleflight.Group

	mu     sync.Mutex
	active map[string]*Handle
	starts int
	stops  int
}

// New returns a Pipeline gated by gate. A nil gate never holds audio back.
func New(gate Gate, opts ...Option) *Pipeline {
	if gate == nil {
		gate = GateFunc(func() bool { return false })
	}
	p := &Pipeline{
		gate:   gate,
		loader: DefaultLoader(audio.DefaultChunkSamples),
		active: make(map[string]*Handle),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start begins capturing track into sinks. Calling Start again for the same
// track while a start is in flight or a handle is running returns that
// handle instead of building a second pipeline.
//
// A closed audio context, an ended track, a cancelled ctx or a loader
// failure yields a setup error; any partial state is released first.
func (p *Pipeline) Start(ctx context.Context, actx *Context, track media.AudioTrack, sinks Sinks) (*Handle, error) {
	if track == nil {
		return nil, types.NewError(types.KindSetup, "capture start", "no microphone track", nil)
	}
	v, err, shared := p.group.Do(track.ID(), func() (any, error) {
		return p.start(ctx, actx, track, sinks)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("capture: joined in-flight start", "track", track.ID())
	}
	return v.(*Handle), nil
}

func (p *Pipeline) start(ctx context.Context, actx *Context, track media.AudioTrack, sinks Sinks) (*Handle, error) {
	p.mu.Lock()
	if h, ok := p.active[track.ID()]; ok {
		p.mu.Unlock()
		return h, nil
	}
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, types.NewError(types.KindSetup, "capture start", "", err)
	}
	if actx == nil || actx.Closed() {
		return nil, types.NewError(types.KindSetup, "capture start", "audio context is closed", nil)
	}
	if !track.Live() {
		return nil, types.NewError(types.KindSetup, "capture start", "microphone track has ended", nil)
	}

	w, err := p.loader(actx)
	if err != nil {
		return nil, types.NewError(types.KindSetup, "load worklet", "", err)
	}
	// The context may have been closed while the worklet loaded.
	if actx.Closed() {
		w.Release()
		return nil, types.NewError(types.KindSetup, "capture start", "audio context closed during setup", nil)
	}

	h := &Handle{
		p:       p,
		track:   track,
		worklet: w,
		sinks:   sinks,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	p.mu.Lock()
	p.active[track.ID()] = h
	p.starts++
	p.mu.Unlock()

	go h.run()
	slog.Debug("capture: started", "track", track.ID(), "frame_bytes", w.FrameSize())
	return h, nil
}

// Stop halts h and waits for its goroutine to exit. Nil and already stopped
// handles are ignored.
func (p *Pipeline) Stop(h *Handle) {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() {
		close(h.stop)
		<-h.done
		h.worklet.Release()

		p.mu.Lock()
		if p.active[h.track.ID()] == h {
			delete(p.active, h.track.ID())
		}
		p.stops++
		p.mu.Unlock()

		st := h.Stats()
		slog.Debug("capture: stopped",
			"track", h.track.ID(),
			"processed", st.Processed,
			"forwarded", st.Forwarded,
			"gated", st.Gated,
		)
	})
}

// Running returns the number of running handles.
func (p *Pipeline) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Counts returns how many handles were started and stopped so far.
func (p *Pipeline) Counts() (starts, stops int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts, p.stops
}

// Stats are per-handle frame counters.
type Stats struct {
	Processed uint64
	Forwarded uint64
	Gated     uint64
}

// Handle is one running capture.
type Handle struct {
	p       *Pipeline
	track   media.AudioTrack
	worklet *Worklet
	sinks   Sinks

	processed atomic.Uint64
	forwarded atomic.Uint64
	gated     atomic.Uint64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Stats returns the frame counters so far.
func (h *Handle) Stats() Stats {
	return Stats{
		Processed: h.processed.Load(),
		Forwarded: h.forwarded.Load(),
		Gated:     h.gated.Load(),
	}
}

func (h *Handle) run() {
	defer close(h.done)

	frames := h.track.Frames()
	for {
		select {
		case <-h.stop:
			return
		case frame, ok := <-frames:
			if !ok {
				h.ended()
				return
			}
			for _, pcm := range h.worklet.Process(frame) {
				select {
				case <-h.stop:
					return
				default:
				}
				h.emit(pcm)
			}
		}
	}
}

func (h *Handle) emit(pcm []byte) {
	level := audio.Level(pcm)
	h.processed.Add(1)
	if h.sinks.Level != nil {
		h.sinks.Level(level)
	}
	if h.p.gate.Speaking() {
		h.gated.Add(1)
		return
	}
	h.forwarded.Add(1)
	if h.sinks.Frame != nil {
		h.sinks.Frame(pcm, level)
	}
}

// ended reports a track that went away underneath a running handle.
func (h *Handle) ended() {
	select {
	case <-h.stop:
		return
	default:
	}
	slog.Warn("capture: microphone track ended", "track", h.track.ID())
	if h.sinks.Ended != nil {
		err := types.NewError(types.KindDevice, "capture", "microphone disconnected", nil)
		go h.sinks.Ended(err)
	}
}
