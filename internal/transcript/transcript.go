// Package transcript accumulates the streamed transcription fragments of an
// interview into whole speaker turns and persists them as JSON Lines.
//
// The live service delivers the user's and the interviewer's speech as many
// small fragments. An [Accumulator] appends fragments to the open turn while
// the speaker stays the same and closes the turn when the other side starts
// talking. Every closed turn is written as one JSON object per line.
//
// All methods are safe for concurrent use.
package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

// Turn is one closed speaker turn.
type Turn struct {
	SessionID string        `json:"session_id"`
	Seq       int           `json:"seq"`
	Speaker   types.Speaker `json:"speaker"`
	Text      string        `json:"text"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
}

// Option configures an [Accumulator].
type Option func(*Accumulator)

// WithClock overrides the time source used for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(a *Accumulator) { a.now = now }
}

// Accumulator merges fragments into turns.
type Accumulator struct {
	sessionID string
	now       func() time.Time

	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	open   *Turn
	text   strings.Builder
	turns  []Turn
	seq    int
	err    error
}

// New creates an Accumulator writing closed turns to w. w may be nil to keep
// turns in memory only.
func New(sessionID string, w io.Writer, opts ...Option) *Accumulator {
	a := &Accumulator{sessionID: sessionID, now: time.Now}
	if w != nil {
		a.enc = json.NewEncoder(w)
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Create opens dir/<sessionID>.jsonl for appending and returns an Accumulator
// writing to it. [Accumulator.Close] closes the file.
func Create(dir, sessionID string, opts ...Option) (*Accumulator, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("transcript: create dir: %w", err)
	}
	path := filepath.Join(dir, sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("transcript: open %q: %w", path, err)
	}
	a := New(sessionID, f, opts...)
	a.closer = f
	return a, nil
}

// Add appends one transcription fragment. A fragment from the other speaker
// closes the open turn. Blank fragments are ignored; a zero Timestamp is
// stamped with the accumulator's clock.
func (a *Accumulator) Add(ev types.TranscriptionEvent) {
	if strings.TrimSpace(ev.Text) == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	at := ev.Timestamp
	if at.IsZero() {
		at = a.now()
	}
	if a.open != nil && a.open.Speaker != ev.Speaker {
		a.closeTurn()
	}
	if a.open == nil {
		a.open = &Turn{Speaker: ev.Speaker, StartedAt: at}
		a.text.Reset()
	}
	a.text.WriteString(ev.Text)
	a.open.EndedAt = at
}

// Flush closes the open turn, if any.
func (a *Accumulator) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.open != nil {
		a.closeTurn()
	}
	return a.err
}

// Turns returns the closed turns so far.
func (a *Accumulator) Turns() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Turn(nil), a.turns...)
}

// Close flushes the open turn and closes the underlying file when the
// Accumulator was made by [Create]. It returns the first write error.
func (a *Accumulator) Close() error {
	err := a.Flush()
	a.mu.Lock()
	c := a.closer
	a.closer = nil
	a.mu.Unlock()
	if c != nil {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("transcript: close: %w", cerr)
		}
	}
	return err
}

// closeTurn finalises the open turn. Caller holds a.mu.
func (a *Accumulator) closeTurn() {
	t := *a.open
	a.open = nil
	t.Text = strings.Join(strings.Fields(a.text.String()), " ")
	a.seq++
	t.Seq = a.seq
	t.SessionID = a.sessionID
	a.turns = append(a.turns, t)

	if a.enc != nil && a.err == nil {
		if err := a.enc.Encode(t); err != nil {
			a.err = fmt.Errorf("transcript: write turn %d: %w", t.Seq, err)
		}
	}
}
