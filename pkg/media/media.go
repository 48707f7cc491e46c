// Package media defines camera and microphone tracks and the leak-free
// acquisition of a combined stream.
//
// Concrete devices live in subpackages: [native] talks to the operating
// system through miniaudio and OpenCV, [mock] is an in-memory device for
// tests. Everything above this package depends only on the interfaces here.
package media

import (
	"image"

	"github.com/cruso003/JobGenie-sub001/pkg/audio"
)

// Kind distinguishes audio and video tracks.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Track is one live capture source.
type Track interface {
	// ID is unique within a stream.
	ID() string

	// Kind reports whether this is an audio or video track.
	Kind() Kind

	// Live reports whether the device is still delivering data. It turns
	// false after Stop or when the device disappears.
	Live() bool

	// Stop releases the device. Safe to call more than once.
	Stop() error
}

// AudioTrack delivers microphone buffers.
type AudioTrack interface {
	Track

	// Format is the native format of the frames on Frames.
	Format() audio.Format

	// Frames is closed when the track ends, whether through Stop or because
	// the device went away.
	Frames() <-chan audio.AudioFrame
}

// VideoTrack exposes the most recent camera frame.
type VideoTrack interface {
	Track

	// Snapshot returns the latest frame. Before the first frame has arrived
	// it returns nil or an image with empty bounds.
	Snapshot() (image.Image, error)
}

// Device opens capture tracks. Implementations should return *types.Error
// values of kind Permission or Device where they can tell the difference.
type Device interface {
	OpenAudio(c AudioConstraints) (AudioTrack, error)
	OpenVideo(c VideoConstraints) (VideoTrack, error)
}

// AudioConstraints are the requested microphone properties. Processing flags
// are hints; devices without the capability ignore them.
type AudioConstraints struct {
	SampleRate       int
	Channels         int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// Format returns the requested sample rate and channel count.
func (c AudioConstraints) Format() audio.Format {
	return audio.Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// VideoConstraints are the requested camera properties.
type VideoConstraints struct {
	// DeviceID selects a camera; empty means the default one.
	DeviceID string
	Width    int
	Height   int
}

// Constraints bundles the audio and video requests for one acquisition.
type Constraints struct {
	Audio AudioConstraints
	Video VideoConstraints
}

// DefaultConstraints returns mono 24 kHz audio with echo cancellation, noise
// suppression and auto gain requested, and 640x480 video.
func DefaultConstraints() Constraints {
	return Constraints{
		Audio: AudioConstraints{
			SampleRate:       24000,
			Channels:         1,
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGainControl:  true,
		},
		Video: VideoConstraints{Width: 640, Height: 480},
	}
}
