package audio_test

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/cruso003/JobGenie-sub001/pkg/audio"
)

func pcm16(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func samples16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

func equalSamples(t *testing.T, got, want []int16) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMonoToStereo(t *testing.T) {
	t.Parallel()
	equalSamples(t, samples16(audio.MonoToStereo(pcm16(100, -200, 300))), []int16{100, 100, -200, -200, 300, 300})
}

func TestStereoToMono(t *testing.T) {
	t.Parallel()
	equalSamples(t, samples16(audio.StereoToMono(pcm16(100, 200, -100, -200))), []int16{150, -150})
}

func TestStereoToMono_NoOverflow(t *testing.T) {
	t.Parallel()
	equalSamples(t, samples16(audio.StereoToMono(pcm16(32767, 32767, -32768, -32768))), []int16{32767, -32768})
}

func TestResampleMono16(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		src, dst int
		in       []byte
		wantLen  int
	}{
		{"same rate", 24000, 24000, pcm16(1, 2, 3), 6},
		{"48k to 24k", 48000, 24000, pcm16(0, 100, 200, 300), 4},
		{"16k to 24k", 16000, 24000, pcm16(0, 100, 200, 300), 12},
		{"zero src rate", 0, 24000, pcm16(1, 2), 4},
		{"zero dst rate", 24000, 0, pcm16(1, 2), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := audio.ResampleMono16(tt.in, tt.src, tt.dst)
			if len(out) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(out), tt.wantLen)
			}
		})
	}
}

func TestResampleMono16_Interpolates(t *testing.T) {
	t.Parallel()
	// Doubling the rate inserts midpoints.
	got := samples16(audio.ResampleMono16(pcm16(0, 100), 12000, 24000))
	equalSamples(t, got, []int16{0, 50, 100, 100})
}

func TestResampleStereo16_KeepsChannelsApart(t *testing.T) {
	t.Parallel()
	got := samples16(audio.ResampleStereo16(pcm16(10, -10, 20, -20, 30, -30, 40, -40), 48000, 24000))
	equalSamples(t, got, []int16{10, -10, 30, -30})
}

func TestFormatConverter(t *testing.T) {
	t.Parallel()

	target := audio.Format{SampleRate: 24000, Channels: 1}

	t.Run("no-op", func(t *testing.T) {
		t.Parallel()
		conv := audio.FormatConverter{Target: target}
		in := audio.AudioFrame{Data: pcm16(1, 2, 3), SampleRate: 24000, Channels: 1, Timestamp: time.Second}
		out := conv.Convert(in)
		if &out.Data[0] != &in.Data[0] {
			t.Error("expected the same backing array for a matching format")
		}
	})

	t.Run("48k stereo to 24k mono", func(t *testing.T) {
		t.Parallel()
		conv := audio.FormatConverter{Target: target}
		in := audio.AudioFrame{Data: pcm16(100, 200, 100, 200, 300, 400, 300, 400), SampleRate: 48000, Channels: 2}
		out := conv.Convert(in)
		if out.Format() != target {
			t.Fatalf("format = %v, want %v", out.Format(), target)
		}
		equalSamples(t, samples16(out.Data), []int16{150, 350})
	})

	t.Run("odd byte count", func(t *testing.T) {
		t.Parallel()
		conv := audio.FormatConverter{Target: target}
		out := conv.Convert(audio.AudioFrame{Data: []byte{1, 2, 3}, SampleRate: 24000, Channels: 1})
		if out.Data != nil {
			t.Errorf("expected nil data, got %d bytes", len(out.Data))
		}
		if out.Format() != target {
			t.Errorf("format = %v, want %v", out.Format(), target)
		}
	})
}

func TestFormat_Bytes(t *testing.T) {
	t.Parallel()

	f := audio.Format{SampleRate: 24000, Channels: 1}
	if got := f.Bytes(50 * time.Millisecond); got != 2400 {
		t.Errorf("Bytes(50ms) = %d, want 2400", got)
	}
	if got := f.Duration(48000); got != time.Second {
		t.Errorf("Duration(48000) = %v, want 1s", got)
	}
	if got := (audio.Format{}).Duration(10); got != 0 {
		t.Errorf("zero format Duration = %v, want 0", got)
	}
	if got := f.String(); got != "24000Hz mono" {
		t.Errorf("String = %q", got)
	}
}

func TestLevel(t *testing.T) {
	t.Parallel()

	if got := audio.Level(nil); got != 0 {
		t.Errorf("Level(nil) = %v, want 0", got)
	}
	if got := audio.Level(pcm16(0, 0, 0)); got != 0 {
		t.Errorf("silence level = %v, want 0", got)
	}
	full := audio.Level(pcm16(-32768, -32768))
	if math.Abs(full-1) > 1e-9 {
		t.Errorf("full scale level = %v, want 1", full)
	}
	half := audio.Level(pcm16(16384, -16384))
	if math.Abs(half-0.5) > 1e-3 {
		t.Errorf("half scale level = %v, want 0.5", half)
	}
}
