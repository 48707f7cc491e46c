package tap_test

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/youpy/go-wav"

	"github.com/cruso003/JobGenie-sub001/internal/tap"
	"github.com/cruso003/JobGenie-sub001/pkg/audio"
)

func pcm16(samples ...int16) []byte {
	b := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	return b
}

func readWAV(t *testing.T, path string) (*wav.WavFormat, []wav.Sample) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	var all []wav.Sample
	for {
		s, err := r.ReadSamples()
		all = append(all, s...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read samples: %v", err)
		}
	}
	return format, all
}

func TestRecorder_WritesMonoWAV(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mic.wav")
	r, err := tap.New(path, audio.Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	r.Write(pcm16(1, -2, 3))
	r.Write(pcm16(32767, -32768))
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	format, samples := readWAV(t, path)
	if format.NumChannels != 1 || format.SampleRate != 16000 || format.BitsPerSample != 16 {
		t.Errorf("format = %+v, want mono 16 kHz 16-bit", format)
	}
	want := []int{1, -2, 3, 32767, -32768}
	if len(samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(samples), len(want))
	}
	for i, w := range want {
		if samples[i].Values[0] != w {
			t.Errorf("sample %d = %d, want %d", i, samples[i].Values[0], w)
		}
	}
}

func TestRecorder_StereoKeepsChannels(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "model.wav")
	r, err := tap.New(path, audio.Format{SampleRate: 24000, Channels: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Write(pcm16(10, -10, 20, -20))
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, samples := readWAV(t, path)
	if len(samples) != 2 {
		t.Fatalf("got %d frames, want 2", len(samples))
	}
	if samples[1].Values[0] != 20 || samples[1].Values[1] != -20 {
		t.Errorf("frame 1 = %v, want [20 -20]", samples[1].Values)
	}
}

func TestRecorder_CloseRemovesSpoolAndIsIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r, err := tap.New(filepath.Join(dir, "x.wav"), audio.Format{SampleRate: 8000, Channels: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Write(pcm16(1))
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	r.Write(pcm16(2))

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "x.wav" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("dir contents = %v, want only x.wav", names)
	}
}

func TestNew_RejectsBadFormat(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if _, err := tap.New(filepath.Join(dir, "a.wav"), audio.Format{SampleRate: 8000, Channels: 6}); err == nil {
		t.Error("expected error for 6 channels")
	}
	if _, err := tap.New(filepath.Join(dir, "b.wav"), audio.Format{Channels: 1}); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestOpenPair(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p, err := tap.OpenPair(dir, "s-1", audio.Format{SampleRate: 16000, Channels: 1}, audio.Format{SampleRate: 24000, Channels: 1})
	if err != nil {
		t.Fatalf("OpenPair: %v", err)
	}
	p.Mic.Write(pcm16(1, 2))
	p.Model.Write(pcm16(3))
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, name := range []string{"s-1-mic.wav", "s-1-model.wav"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}
