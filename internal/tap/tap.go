// Package tap records interview audio to WAV files for debugging.
//
// A [Recorder] accepts 16-bit little-endian PCM while the interview runs and
// spools it to a raw scratch file next to the target. [Recorder.Close]
// converts the spool into a WAV file, since the WAV header carries the total
// sample count.
package tap

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/youpy/go-wav"

	"github.com/cruso003/JobGenie-sub001/pkg/audio"
)

const samplesPerWrite = 4096

// Recorder spools PCM and writes a WAV file on Close.
type Recorder struct {
	path   string
	format audio.Format

	mu     sync.Mutex
	spool  *os.File
	buf    *bufio.Writer
	bytes  int64
	err    error
	closed bool
}

// New creates a Recorder that will write path on Close. Only mono and stereo
// formats are supported.
func New(path string, f audio.Format) (*Recorder, error) {
	if f.Channels != 1 && f.Channels != 2 {
		return nil, fmt.Errorf("tap: unsupported channel count %d", f.Channels)
	}
	if f.SampleRate <= 0 {
		return nil, fmt.Errorf("tap: invalid sample rate %d", f.SampleRate)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("tap: create dir: %w", err)
	}
	spool, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.pcm")
	if err != nil {
		return nil, fmt.Errorf("tap: create spool: %w", err)
	}
	return &Recorder{
		path:   path,
		format: f,
		spool:  spool,
		buf:    bufio.NewWriter(spool),
	}, nil
}

// Path returns the WAV file path.
func (r *Recorder) Path() string { return r.path }

// Write appends PCM. After the first failure or after Close it drops data;
// the failure is returned by Close.
func (r *Recorder) Write(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.err != nil {
		return
	}
	n, err := r.buf.Write(pcm)
	r.bytes += int64(n)
	if err != nil {
		r.err = fmt.Errorf("tap: spool: %w", err)
		slog.Warn("tap: recording stopped", "path", r.path, "err", err)
	}
}

// Close writes the WAV file and removes the spool. Idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.err
	}
	r.closed = true

	defer os.Remove(r.spool.Name())
	if err := r.buf.Flush(); err != nil && r.err == nil {
		r.err = fmt.Errorf("tap: spool: %w", err)
	}
	if r.err != nil {
		r.spool.Close()
		return r.err
	}
	if _, err := r.spool.Seek(0, io.SeekStart); err != nil {
		r.spool.Close()
		r.err = fmt.Errorf("tap: rewind spool: %w", err)
		return r.err
	}

	err := r.writeWAV()
	r.err = errors.Join(err, r.spool.Close())
	return r.err
}

func (r *Recorder) writeWAV() error {
	out, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("tap: create %q: %w", r.path, err)
	}

	channels := r.format.Channels
	frames := r.bytes / int64(2*channels)
	w := wav.NewWriter(out, uint32(frames), uint16(channels), uint32(r.format.SampleRate), 16)

	in := bufio.NewReader(r.spool)
	samples := make([]wav.Sample, 0, samplesPerWrite)
	frame := make([]byte, 2*channels)
	for range frames {
		if _, err := io.ReadFull(in, frame); err != nil {
			out.Close()
			return fmt.Errorf("tap: read spool: %w", err)
		}
		var s wav.Sample
		for ch := range channels {
			s.Values[ch] = int(int16(binary.LittleEndian.Uint16(frame[2*ch:])))
		}
		samples = append(samples, s)
		if len(samples) == samplesPerWrite {
			if err := w.WriteSamples(samples); err != nil {
				out.Close()
				return fmt.Errorf("tap: write samples: %w", err)
			}
			samples = samples[:0]
		}
	}
	if len(samples) > 0 {
		if err := w.WriteSamples(samples); err != nil {
			out.Close()
			return fmt.Errorf("tap: write samples: %w", err)
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("tap: close %q: %w", r.path, err)
	}
	return nil
}

// Pair records the microphone and the model side of one interview.
type Pair struct {
	Mic   *Recorder
	Model *Recorder
}

// OpenPair creates dir/<sessionID>-mic.wav and dir/<sessionID>-model.wav
// recorders.
func OpenPair(dir, sessionID string, mic, model audio.Format) (*Pair, error) {
	m, err := New(filepath.Join(dir, sessionID+"-mic.wav"), mic)
	if err != nil {
		return nil, err
	}
	o, err := New(filepath.Join(dir, sessionID+"-model.wav"), model)
	if err != nil {
		m.Close()
		return nil, err
	}
	return &Pair{Mic: m, Model: o}, nil
}

// Close closes both recorders and joins their errors.
func (p *Pair) Close() error {
	return errors.Join(p.Mic.Close(), p.Model.Close())
}
