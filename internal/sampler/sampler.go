// Package sampler periodically grabs a still from the camera, encodes it as
// JPEG and hands it on as base64.
package sampler

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"
)

// FrameSource yields the latest camera frame. A nil image or one with empty
// bounds means the camera has not produced a frame yet.
type FrameSource interface {
	Snapshot() (image.Image, error)
}

const (
	DefaultInterval = time.Second
	DefaultQuality  = 80
)

// Config controls sampling.
type Config struct {
	// Interval between frames. The first frame is taken one interval after
	// Start.
	Interval time.Duration

	// Quality is the JPEG quality, 1–100.
	Quality int

	// MaxWidth downscales wider frames, preserving aspect ratio. Zero keeps
	// the native resolution.
	MaxWidth int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Quality <= 0 || c.Quality > 100 {
		c.Quality = DefaultQuality
	}
	if c.MaxWidth < 0 {
		c.MaxWidth = 0
	}
	return c
}

// Observer receives per-frame encode timings. Optional.
type Observer func(encode time.Duration, bytes int)

// Sampler starts and stops sampling handles. A Sampler runs at most one
// handle at a time. Safe for concurrent use.
type Sampler struct {
	cfg      Config
	observer Observer

	mu      sync.Mutex
	current *Handle
}

// New returns a Sampler with cfg; zero fields take defaults.
func New(cfg Config, observer Observer) *Sampler {
	return &Sampler{cfg: cfg.withDefaults(), observer: observer}
}

// Config returns the effective configuration.
func (s *Sampler) Config() Config { return s.cfg }

// Start samples src every interval and calls onFrame with the base64 JPEG.
// While a handle is running, Start returns it.
func (s *Sampler) Start(src FrameSource, onFrame func(jpegB64 string)) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && !s.current.isStopped() {
		return s.current
	}
	h := &Handle{
		s:       s,
		src:     src,
		onFrame: onFrame,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	s.current = h
	go h.loop()
	return h
}

// Stop halts h and waits for an in-flight tick to finish; no frame is
// delivered after Stop returns. Nil and stopped handles are ignored.
func (s *Sampler) Stop(h *Handle) {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() {
		close(h.stop)
		<-h.done
		s.mu.Lock()
		if s.current == h {
			s.current = nil
		}
		s.mu.Unlock()
	})
}

// Handle is one running sampling loop.
type Handle struct {
	s       *Sampler
	src     FrameSource
	onFrame func(string)

	sent    atomic.Uint64
	skipped atomic.Uint64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Sent returns the number of frames delivered.
func (h *Handle) Sent() uint64 { return h.sent.Load() }

// Skipped returns the number of ticks without a usable frame.
func (h *Handle) Skipped() uint64 { return h.skipped.Load() }

func (h *Handle) isStopped() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

func (h *Handle) loop() {
	defer close(h.done)

	ticker := time.NewTicker(h.s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

func (h *Handle) tick() {
	img, err := h.src.Snapshot()
	if err != nil {
		h.skipped.Add(1)
		slog.Debug("sampler: snapshot failed", "err", err)
		return
	}
	if img == nil || img.Bounds().Empty() {
		h.skipped.Add(1)
		return
	}

	start := time.Now()
	b64, n, err := Encode(img, h.s.cfg.Quality, h.s.cfg.MaxWidth)
	if err != nil {
		h.skipped.Add(1)
		slog.Warn("sampler: encode failed", "err", err)
		return
	}
	if h.s.observer != nil {
		h.s.observer(time.Since(start), n)
	}
	if h.isStopped() {
		return
	}
	h.sent.Add(1)
	if h.onFrame != nil {
		h.onFrame(b64)
	}
}

// Encode JPEG-encodes img at quality, downscaling to maxWidth first when it is
// wider, and returns the base64 payload and the JPEG size.
func Encode(img image.Image, quality, maxWidth int) (string, int, error) {
	img = downscale(img, maxWidth)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", 0, err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), buf.Len(), nil
}

func downscale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := max(1, b.Dy()*maxWidth/b.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
