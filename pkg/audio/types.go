// Package audio holds the PCM primitives of the interview pipeline: the frame
// type produced by capture devices, format conversion, level metering and
// fixed-size framing.
//
// All PCM in this package is signed 16-bit little-endian.
package audio

import (
	"fmt"
	"time"
)

// BytesPerSample is the size of one 16-bit PCM sample.
const BytesPerSample = 2

// AudioFrame is one buffer of PCM delivered by a capture device.
type AudioFrame struct {
	// Data holds interleaved s16le samples.
	Data []byte

	// SampleRate in Hz, e.g. 48000 for a typical built-in microphone.
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp is relative to the start of the track.
	Timestamp time.Duration
}

// Format returns the frame's sample rate and channel count.
func (f AudioFrame) Format() Format {
	return Format{SampleRate: f.SampleRate, Channels: f.Channels}
}

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond returns the byte rate of s16le PCM in this format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * BytesPerSample
}

// Bytes returns how many bytes of PCM cover d, rounded down to a whole
// sample frame.
func (f Format) Bytes(d time.Duration) int {
	frame := f.Channels * BytesPerSample
	if frame <= 0 {
		return 0
	}
	n := int(int64(f.BytesPerSecond()) * int64(d) / int64(time.Second))
	return n - n%frame
}

// Duration returns the playback duration of n bytes of PCM.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}

func (f Format) String() string {
	ch := "mono"
	switch {
	case f.Channels == 2:
		ch = "stereo"
	case f.Channels > 2:
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}
