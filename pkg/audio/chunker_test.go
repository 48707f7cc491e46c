package audio_test

import (
	"testing"

	"github.com/cruso003/JobGenie-sub001/pkg/audio"
)

func TestChunker_FixedFrames(t *testing.T) {
	t.Parallel()

	c := audio.NewChunker(4, 1) // 8 bytes per frame
	if c.FrameSize() != 8 {
		t.Fatalf("FrameSize = %d, want 8", c.FrameSize())
	}

	if frames := c.Push(make([]byte, 6)); len(frames) != 0 {
		t.Fatalf("got %d frames from a partial buffer, want 0", len(frames))
	}
	if c.Pending() != 6 {
		t.Fatalf("Pending = %d, want 6", c.Pending())
	}

	frames := c.Push(make([]byte, 20))
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i, f := range frames {
		if len(f) != 8 {
			t.Errorf("frame %d: len %d, want 8", i, len(f))
		}
	}
	if c.Pending() != 2 {
		t.Errorf("Pending = %d, want 2", c.Pending())
	}
}

func TestChunker_PreservesOrder(t *testing.T) {
	t.Parallel()

	c := audio.NewChunker(2, 1)
	var got []byte
	for i := range 10 {
		for _, f := range c.Push([]byte{byte(i)}) {
			got = append(got, f...)
		}
	}
	want := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	if string(got) != string(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestChunker_FramesAreIndependent(t *testing.T) {
	t.Parallel()

	c := audio.NewChunker(1, 1)
	frames := c.Push([]byte{1, 2, 3, 4})
	frames[0][0] = 99
	if frames[1][0] != 3 {
		t.Errorf("frames share memory: %v", frames)
	}
}

func TestChunker_DefaultsAndReset(t *testing.T) {
	t.Parallel()

	c := audio.NewChunker(0, 0)
	if c.FrameSize() != audio.DefaultChunkSamples*2 {
		t.Errorf("FrameSize = %d, want %d", c.FrameSize(), audio.DefaultChunkSamples*2)
	}
	c.Push([]byte{1, 2, 3})
	c.Reset()
	if c.Pending() != 0 {
		t.Errorf("Pending after Reset = %d, want 0", c.Pending())
	}
}
