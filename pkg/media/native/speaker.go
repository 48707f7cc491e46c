package native

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/cruso003/JobGenie-sub001/pkg/audio"
)

// ErrSpeakerClosed is returned by Write after Close.
var ErrSpeakerClosed = errors.New("native: speaker closed")

// Speaker plays s16le PCM through the default output device.
//
// Write blocks while more than the configured backlog is waiting, so a
// caller writing in small slices is paced by the device clock. oto allows a
// single context per process: create one Speaker and share it between
// sessions.
type Speaker struct {
	otoCtx *oto.Context
	player *oto.Player
	format audio.Format

	mu         sync.Mutex
	cond       *sync.Cond
	buf        []byte
	maxBacklog int
	closed     bool
}

// NewSpeaker opens the output device. backlog bounds how much audio may wait
// in the speaker before Write blocks; 100ms if zero.
func NewSpeaker(format audio.Format, backlog time.Duration) (*Speaker, error) {
	if backlog <= 0 {
		backlog = 100 * time.Millisecond
	}
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   backlog,
	})
	if err != nil {
		return nil, deviceError("open speaker", err)
	}
	<-ready

	s := &Speaker{
		otoCtx:     otoCtx,
		format:     format,
		maxBacklog: format.Bytes(backlog),
	}
	s.cond = sync.NewCond(&s.mu)
	s.player = otoCtx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

// Format returns the output format.
func (s *Speaker) Format() audio.Format { return s.format }

// Write queues pcm for playback.
func (s *Speaker) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) >= s.maxBacklog && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return ErrSpeakerClosed
	}
	s.buf = append(s.buf, pcm...)
	return nil
}

// Read feeds the oto player. With nothing queued it returns silence so the
// player never stalls.
func (s *Speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		clear(p)
		return len(p), nil
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	s.cond.Broadcast()
	return n, nil
}

// Flush drops queued audio, including what the player already buffered.
func (s *Speaker) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	s.cond.Broadcast()
	s.mu.Unlock()

	s.player.Pause()
	s.player.Reset()
	s.player.Play()
}

// Close stops playback. Idempotent.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	if err := s.player.Close(); err != nil {
		return fmt.Errorf("native: close speaker: %w", err)
	}
	return nil
}
