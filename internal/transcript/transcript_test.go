package transcript_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cruso003/JobGenie-sub001/internal/transcript"
	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

func human(text string) types.TranscriptionEvent {
	return types.TranscriptionEvent{Speaker: types.SpeakerHuman, Text: text}
}

func ai(text string) types.TranscriptionEvent {
	return types.TranscriptionEvent{Speaker: types.SpeakerAI, Text: text}
}

// stepClock advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func decodeLines(t *testing.T, data []byte) []transcript.Turn {
	t.Helper()
	var turns []transcript.Turn
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var turn transcript.Turn
		if err := json.Unmarshal(sc.Bytes(), &turn); err != nil {
			t.Fatalf("decode line %q: %v", sc.Text(), err)
		}
		turns = append(turns, turn)
	}
	return turns
}

func TestAccumulator_MergesFragmentsPerTurn(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	a := transcript.New("s-1", &buf, transcript.WithClock(stepClock()))

	a.Add(ai("Hel"))
	a.Add(ai("lo, tell me "))
	a.Add(ai(" about yourself."))
	a.Add(human("I am a"))
	a.Add(human(" backend engineer."))
	a.Add(ai("Great."))
	if err := a.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	want := []struct {
		speaker types.Speaker
		text    string
	}{
		{types.SpeakerAI, "Hello, tell me about yourself."},
		{types.SpeakerHuman, "I am a backend engineer."},
		{types.SpeakerAI, "Great."},
	}
	got := decodeLines(t, buf.Bytes())
	if len(got) != len(want) {
		t.Fatalf("got %d turns, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Speaker != w.speaker || got[i].Text != w.text {
			t.Errorf("turn %d: got %s %q, want %s %q", i, got[i].Speaker, got[i].Text, w.speaker, w.text)
		}
		if got[i].Seq != i+1 {
			t.Errorf("turn %d: seq = %d, want %d", i, got[i].Seq, i+1)
		}
		if got[i].SessionID != "s-1" {
			t.Errorf("turn %d: session_id = %q", i, got[i].SessionID)
		}
	}

	first := got[0]
	if !first.EndedAt.After(first.StartedAt) {
		t.Errorf("turn 0: ended_at %s should be after started_at %s", first.EndedAt, first.StartedAt)
	}
	if !got[1].StartedAt.After(first.EndedAt) {
		t.Error("turn 1 should start after turn 0 ended")
	}
}

func TestAccumulator_IgnoresBlankFragments(t *testing.T) {
	t.Parallel()
	a := transcript.New("s-1", nil)
	a.Add(human("   "))
	a.Add(human(""))
	if err := a.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if turns := a.Turns(); len(turns) != 0 {
		t.Errorf("got %d turns, want 0", len(turns))
	}
}

func TestAccumulator_FlushIsIdempotent(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	a := transcript.New("s-1", &buf)
	a.Add(human("hello"))
	a.Flush()
	a.Flush()

	if got := decodeLines(t, buf.Bytes()); len(got) != 1 {
		t.Errorf("got %d lines, want 1", len(got))
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAccumulator_WriteErrorReported(t *testing.T) {
	t.Parallel()
	a := transcript.New("s-1", failWriter{})
	a.Add(human("hello"))
	if err := a.Flush(); err == nil {
		t.Fatal("expected write error, got nil")
	}
	if turns := a.Turns(); len(turns) != 1 {
		t.Errorf("turn should still be kept in memory, got %d", len(turns))
	}
}

func TestCreate_WritesJSONLFile(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "transcripts")
	a, err := transcript.Create(dir, "s-42")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	a.Add(ai("Welcome."))
	a.Add(human("Thanks."))
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "s-42.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	got := decodeLines(t, data)
	if len(got) != 2 || got[0].Text != "Welcome." || got[1].Text != "Thanks." {
		t.Errorf("unexpected file contents: %+v", got)
	}
}

func TestAccumulator_UsesEventTimestamps(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	a := transcript.New("s-1", nil, transcript.WithClock(func() time.Time {
		t.Error("clock consulted for a timestamped event")
		return time.Time{}
	}))

	a.Add(types.TranscriptionEvent{Speaker: types.SpeakerAI, Text: "Hi.", Timestamp: base})
	a.Add(types.TranscriptionEvent{Speaker: types.SpeakerAI, Text: " Ready?", Timestamp: base.Add(2 * time.Second)})
	a.Add(types.TranscriptionEvent{Speaker: types.SpeakerHuman, Text: "Yes.", Timestamp: base.Add(3 * time.Second)})
	a.Flush()

	turns := a.Turns()
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if !turns[0].StartedAt.Equal(base) || !turns[0].EndedAt.Equal(base.Add(2*time.Second)) {
		t.Errorf("turn 0 spans %s..%s", turns[0].StartedAt, turns[0].EndedAt)
	}
	if turns[1].Speaker != types.SpeakerHuman || !turns[1].StartedAt.Equal(base.Add(3*time.Second)) {
		t.Errorf("turn 1 = %+v", turns[1])
	}
}
