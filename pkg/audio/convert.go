package audio

import (
	"encoding/binary"
	"log/slog"
	"sync"
)

// FormatConverter converts microphone frames to the format the interview
// service expects. It logs once on the first format mismatch and once on the
// first misaligned buffer. Create one per track; not safe for concurrent use.
type FormatConverter struct {
	Target Format

	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert returns frame in the target format. A frame already in the target
// format is returned as-is. Misaligned buffers come back with nil Data.
func (c *FormatConverter) Convert(frame AudioFrame) AudioFrame {
	if len(frame.Data)%BytesPerSample != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio: odd byte count in PCM buffer, dropping",
				"bytes", len(frame.Data),
				"format", frame.Format().String(),
			)
		})
		return AudioFrame{SampleRate: c.Target.SampleRate, Channels: c.Target.Channels, Timestamp: frame.Timestamp}
	}
	if frame.Format() == c.Target {
		return frame
	}

	c.warnedMismatch.Do(func() {
		slog.Debug("audio: converting capture format",
			"from", frame.Format().String(),
			"to", c.Target.String(),
		)
	})

	pcm := frame.Data
	channels := frame.Channels

	// Downmix before resampling so the resampler touches half the data.
	if channels == 2 && c.Target.Channels == 1 {
		pcm = StereoToMono(pcm)
		channels = 1
	}
	if frame.SampleRate != c.Target.SampleRate {
		if channels == 1 {
			pcm = ResampleMono16(pcm, frame.SampleRate, c.Target.SampleRate)
		} else {
			pcm = ResampleStereo16(pcm, frame.SampleRate, c.Target.SampleRate)
		}
	}
	if channels == 1 && c.Target.Channels == 2 {
		pcm = MonoToStereo(pcm)
	}

	return AudioFrame{
		Data:       pcm,
		SampleRate: c.Target.SampleRate,
		Channels:   c.Target.Channels,
		Timestamp:  frame.Timestamp,
	}
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[i*BytesPerSample:]))
}

func putSample(pcm []byte, i int, v int16) {
	binary.LittleEndian.PutUint16(pcm[i*BytesPerSample:], uint16(v))
}

func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// MonoToStereo duplicates every mono sample into an L/R pair.
func MonoToStereo(pcm []byte) []byte {
	n := len(pcm) / BytesPerSample
	out := make([]byte, n*2*BytesPerSample)
	for i := range n {
		s := sampleAt(pcm, i)
		putSample(out, 2*i, s)
		putSample(out, 2*i+1, s)
	}
	return out
}

// StereoToMono averages each L/R pair into one sample.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / (2 * BytesPerSample)
	out := make([]byte, frames*BytesPerSample)
	for i := range frames {
		l := int32(sampleAt(pcm, 2*i))
		r := int32(sampleAt(pcm, 2*i+1))
		putSample(out, i, clamp16((l+r)/2))
	}
	return out
}

// ResampleMono16 linearly interpolates mono PCM from srcRate to dstRate.
// Invalid rates and equal rates return the input unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	return resample(pcm, 1, srcRate, dstRate)
}

// ResampleStereo16 is ResampleMono16 for interleaved stereo.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	return resample(pcm, 2, srcRate, dstRate)
}

func resample(pcm []byte, channels, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return pcm
	}
	srcFrames := len(pcm) / (channels * BytesPerSample)
	if srcFrames == 0 {
		return pcm
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*channels*BytesPerSample)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx + 1
		if next >= srcFrames {
			next = idx
		}
		for ch := range channels {
			s0 := float64(sampleAt(pcm, idx*channels+ch))
			s1 := float64(sampleAt(pcm, next*channels+ch))
			putSample(out, i*channels+ch, int16(s0*(1-frac)+s1*frac))
		}
	}
	return out
}
