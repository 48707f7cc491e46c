package sampler_test

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/cruso003/JobGenie-sub001/internal/sampler"
	"github.com/cruso003/JobGenie-sub001/pkg/media/mock"
)

type frames struct {
	mu  sync.Mutex
	got []string
}

func (f *frames) add(b64 string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, b64)
}

func (f *frames) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func decode(t *testing.T, b64 string) image.Image {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("base64: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("jpeg: %v", err)
	}
	return img
}

func TestSampler_EmitsJPEGEveryInterval(t *testing.T) {
	t.Parallel()

	track := mock.NewVideoTrack(mock.SolidImage(64, 48, color.RGBA{R: 200, A: 255}))
	s := sampler.New(sampler.Config{Interval: 10 * time.Millisecond}, nil)
	var out frames
	h := s.Start(track, out.add)
	defer s.Stop(h)

	waitFor(t, "three frames", func() bool { return out.len() >= 3 })

	out.mu.Lock()
	img := decode(t, out.got[0])
	out.mu.Unlock()
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("decoded size = %v, want native 64x48", b)
	}
}

func TestSampler_FirstFrameAfterOneInterval(t *testing.T) {
	t.Parallel()

	track := mock.NewVideoTrack(mock.SolidImage(8, 8, color.White))
	s := sampler.New(sampler.Config{Interval: 100 * time.Millisecond}, nil)
	var out frames
	h := s.Start(track, out.add)
	defer s.Stop(h)

	time.Sleep(40 * time.Millisecond)
	if n := out.len(); n != 0 {
		t.Fatalf("got %d frames before the first interval", n)
	}
	waitFor(t, "first frame", func() bool { return out.len() == 1 })
}

func TestSampler_SkipsEmptyFrames(t *testing.T) {
	t.Parallel()

	track := mock.NewVideoTrack(nil)
	s := sampler.New(sampler.Config{Interval: 5 * time.Millisecond}, nil)
	var out frames
	h := s.Start(track, out.add)
	defer s.Stop(h)

	waitFor(t, "skipped ticks", func() bool { return h.Skipped() >= 2 })
	track.SetImage(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	skipped := h.Skipped()
	waitFor(t, "more skipped ticks", func() bool { return h.Skipped() >= skipped+2 })
	if n := out.len(); n != 0 {
		t.Fatalf("emitted %d frames for a camera without pixels", n)
	}

	track.SetImage(mock.SolidImage(4, 4, color.Black))
	waitFor(t, "frame after camera warmed up", func() bool { return out.len() >= 1 })
}

func TestSampler_SnapshotErrorSkips(t *testing.T) {
	t.Parallel()

	track := mock.NewVideoTrack(mock.SolidImage(4, 4, color.Black))
	track.SnapshotErr = errors.New("busy")
	s := sampler.New(sampler.Config{Interval: 5 * time.Millisecond}, nil)
	var out frames
	h := s.Start(track, out.add)
	waitFor(t, "skipped ticks", func() bool { return h.Skipped() >= 2 })
	s.Stop(h)
	if out.len() != 0 {
		t.Errorf("frames = %d, want 0", out.len())
	}
}

func TestSampler_StopIsSynchronous(t *testing.T) {
	t.Parallel()

	track := mock.NewVideoTrack(mock.SolidImage(16, 16, color.White))
	s := sampler.New(sampler.Config{Interval: 2 * time.Millisecond}, nil)
	var out frames
	h := s.Start(track, out.add)
	waitFor(t, "a frame", func() bool { return out.len() >= 1 })

	s.Stop(h)
	s.Stop(h)
	s.Stop(nil)
	n := out.len()
	time.Sleep(20 * time.Millisecond)
	if got := out.len(); got != n {
		t.Errorf("frames delivered after Stop: %d -> %d", n, got)
	}
	if h.Sent() != uint64(n) {
		t.Errorf("Sent = %d, want %d", h.Sent(), n)
	}
}

func TestSampler_StartIsReentrant(t *testing.T) {
	t.Parallel()

	track := mock.NewVideoTrack(mock.SolidImage(4, 4, color.White))
	s := sampler.New(sampler.Config{Interval: time.Hour}, nil)
	h1 := s.Start(track, nil)
	h2 := s.Start(track, nil)
	if h1 != h2 {
		t.Error("second Start built a new handle while one was running")
	}
	s.Stop(h1)

	h3 := s.Start(track, nil)
	defer s.Stop(h3)
	if h3 == h1 {
		t.Error("Start after Stop returned the stopped handle")
	}
}

func TestEncode_Downscale(t *testing.T) {
	t.Parallel()

	src := mock.SolidImage(640, 480, color.Gray{Y: 90})
	b64, n, err := sampler.Encode(src, 80, 320)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if n == 0 {
		t.Fatal("empty JPEG")
	}
	if b := decode(t, b64).Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Errorf("size = %v, want 320x240", b)
	}

	// Narrow frames keep their size.
	b64, _, err = sampler.Encode(mock.SolidImage(100, 50, color.White), 80, 320)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if b := decode(t, b64).Bounds(); b.Dx() != 100 {
		t.Errorf("width = %d, want 100", b.Dx())
	}
}

func TestSampler_ObserverSeesEncodes(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var sizes []int
	obs := func(_ time.Duration, n int) {
		mu.Lock()
		defer mu.Unlock()
		sizes = append(sizes, n)
	}
	track := mock.NewVideoTrack(mock.SolidImage(8, 8, color.White))
	s := sampler.New(sampler.Config{Interval: 5 * time.Millisecond, Quality: 500}, obs)
	if s.Config().Quality != sampler.DefaultQuality {
		t.Errorf("Quality = %d, want default for out-of-range input", s.Config().Quality)
	}
	h := s.Start(track, nil)
	defer s.Stop(h)
	waitFor(t, "observer", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sizes) > 0 && sizes[0] > 0
	})
}
