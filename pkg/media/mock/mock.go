// Package mock provides in-memory implementations of the media interfaces
// for tests.
//
// All mocks are safe for concurrent use. They record calls and expose
// exported fields that tests set to control results.
//
// Typical usage:
//
//	dev := &mock.Device{}
//	stream, err := media.Acquire(ctx, dev, media.DefaultConstraints())
//	dev.Audio().Emit(pcm) // deliver a microphone buffer
package mock

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/cruso003/JobGenie-sub001/pkg/audio"
	"github.com/cruso003/JobGenie-sub001/pkg/media"
)

var (
	_ media.Device     = (*Device)(nil)
	_ media.AudioTrack = (*AudioTrack)(nil)
	_ media.VideoTrack = (*VideoTrack)(nil)
)

// ─── Device ──────────────────────────────────────────────────────────────────

// Device is a mock [media.Device]. Zero value opens working tracks.
type Device struct {
	mu sync.Mutex

	// AudioErr, if non-nil, is returned by OpenAudio.
	AudioErr error

	// VideoErr, if non-nil, is returned by OpenVideo.
	VideoErr error

	// Image is what opened video tracks return from Snapshot. Defaults to a
	// 64x48 grey frame.
	Image image.Image

	// AudioFormat is the native format of opened audio tracks. Defaults to
	// the requested constraints.
	AudioFormat audio.Format

	// VideoStopDelay makes every opened video track take this long to stop,
	// like a camera driver releasing the device.
	VideoStopDelay time.Duration

	// OpenAudioCalls and OpenVideoCalls count calls.
	OpenAudioCalls int
	OpenVideoCalls int

	peakVideo int

	audioTracks []*AudioTrack
	videoTracks []*VideoTrack
}

// OpenAudio returns a new AudioTrack or AudioErr.
func (d *Device) OpenAudio(c media.AudioConstraints) (media.AudioTrack, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenAudioCalls++
	if d.AudioErr != nil {
		return nil, d.AudioErr
	}
	f := d.AudioFormat
	if f.SampleRate == 0 {
		f = audio.Format{SampleRate: c.SampleRate, Channels: c.Channels}
	}
	t := NewAudioTrack(f)
	d.audioTracks = append(d.audioTracks, t)
	return t, nil
}

// OpenVideo returns a new VideoTrack or VideoErr.
func (d *Device) OpenVideo(c media.VideoConstraints) (media.VideoTrack, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenVideoCalls++
	if d.VideoErr != nil {
		return nil, d.VideoErr
	}
	img := d.Image
	if img == nil {
		img = SolidImage(64, 48, color.Gray{Y: 128})
	}
	t := NewVideoTrack(img)
	t.StopDelay = d.VideoStopDelay
	d.videoTracks = append(d.videoTracks, t)
	live := 0
	for _, v := range d.videoTracks {
		if v.Live() {
			live++
		}
	}
	d.peakVideo = max(d.peakVideo, live)
	return t, nil
}

// PeakLiveVideo is the largest number of video tracks that were live at the
// same time, sampled whenever a track opens.
func (d *Device) PeakLiveVideo() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.peakVideo
}

// Audio returns the most recently opened audio track, or nil.
func (d *Device) Audio() *AudioTrack {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.audioTracks) == 0 {
		return nil
	}
	return d.audioTracks[len(d.audioTracks)-1]
}

// Video returns the most recently opened video track, or nil.
func (d *Device) Video() *VideoTrack {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.videoTracks) == 0 {
		return nil
	}
	return d.videoTracks[len(d.videoTracks)-1]
}

// LiveTracks counts opened tracks that have not been stopped.
func (d *Device) LiveTracks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, t := range d.audioTracks {
		if t.Live() {
			n++
		}
	}
	for _, t := range d.videoTracks {
		if t.Live() {
			n++
		}
	}
	return n
}

// ─── AudioTrack ──────────────────────────────────────────────────────────────

// AudioTrack is a mock microphone. Tests push buffers with Emit.
type AudioTrack struct {
	mu      sync.Mutex
	format  audio.Format
	frames  chan audio.AudioFrame
	live    bool
	started time.Time

	// StopErr is returned by the first Stop.
	StopErr error

	// StopCalls counts calls to Stop.
	StopCalls int
}

// NewAudioTrack returns a live track delivering frames in format f.
func NewAudioTrack(f audio.Format) *AudioTrack {
	return &AudioTrack{
		format:  f,
		frames:  make(chan audio.AudioFrame, 64),
		live:    true,
		started: time.Now(),
	}
}

func (t *AudioTrack) ID() string           { return "mock-audio" }
func (t *AudioTrack) Kind() media.Kind     { return media.KindAudio }
func (t *AudioTrack) Format() audio.Format { return t.format }

func (t *AudioTrack) Frames() <-chan audio.AudioFrame { return t.frames }

// Live reports whether the track has not been stopped or ended.
func (t *AudioTrack) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Emit delivers pcm as one frame. It reports false once the track ended or
// when the frame buffer is full.
func (t *AudioTrack) Emit(pcm []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.live {
		return false
	}
	select {
	case t.frames <- audio.AudioFrame{
		Data:       pcm,
		SampleRate: t.format.SampleRate,
		Channels:   t.format.Channels,
		Timestamp:  time.Since(t.started),
	}:
		return true
	default:
		return false
	}
}

// End simulates the device disappearing.
func (t *AudioTrack) End() { t.end() }

// Stop ends the track. Idempotent.
func (t *AudioTrack) Stop() error {
	t.mu.Lock()
	t.StopCalls++
	first := t.live
	err := t.StopErr
	t.mu.Unlock()
	t.end()
	if first {
		return err
	}
	return nil
}

func (t *AudioTrack) end() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.live {
		t.live = false
		close(t.frames)
	}
}

// ─── VideoTrack ──────────────────────────────────────────────────────────────

// VideoTrack is a mock camera returning a fixed image.
type VideoTrack struct {
	mu   sync.Mutex
	img  image.Image
	live bool

	// SnapshotErr, if non-nil, is returned by Snapshot.
	SnapshotErr error

	// StopErr is returned by the first Stop.
	StopErr error

	// StopDelay is slept by the first Stop before the track goes dead.
	StopDelay time.Duration

	// StopCalls and SnapshotCalls count calls.
	StopCalls     int
	SnapshotCalls int
}

// NewVideoTrack returns a live track serving img.
func NewVideoTrack(img image.Image) *VideoTrack {
	return &VideoTrack{img: img, live: true}
}

func (t *VideoTrack) ID() string       { return "mock-video" }
func (t *VideoTrack) Kind() media.Kind { return media.KindVideo }

// Live reports whether the track has not been stopped.
func (t *VideoTrack) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// SetImage replaces the frame returned by Snapshot. A nil image simulates a
// camera that has not produced its first frame.
func (t *VideoTrack) SetImage(img image.Image) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.img = img
}

// Snapshot returns the current image.
func (t *VideoTrack) Snapshot() (image.Image, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.SnapshotCalls++
	if !t.live {
		return nil, errors.New("mock: video track stopped")
	}
	if t.SnapshotErr != nil {
		return nil, t.SnapshotErr
	}
	return t.img, nil
}

// Stop ends the track. Idempotent.
func (t *VideoTrack) Stop() error {
	t.mu.Lock()
	t.StopCalls++
	live, delay := t.live, t.StopDelay
	t.mu.Unlock()
	if !live {
		return nil
	}
	time.Sleep(delay)

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.live {
		return nil
	}
	t.live = false
	return t.StopErr
}

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}
