package capture

import (
	"fmt"

	"github.com/cruso003/JobGenie-sub001/pkg/audio"
)

// Worklet turns microphone buffers of any format into fixed-size frames of
// the context format.
type Worklet struct {
	conv    audio.FormatConverter
	chunker *audio.Chunker
}

// NewWorklet returns a worklet emitting frames of bufferSize samples per
// channel in format.
func NewWorklet(format audio.Format, bufferSize int) *Worklet {
	return &Worklet{
		conv:    audio.FormatConverter{Target: format},
		chunker: audio.NewChunker(bufferSize, format.Channels),
	}
}

// Process converts frame and returns every complete output frame.
func (w *Worklet) Process(frame audio.AudioFrame) [][]byte {
	converted := w.conv.Convert(frame)
	if len(converted.Data) == 0 {
		return nil
	}
	return w.chunker.Push(converted.Data)
}

// FrameSize is the byte length of every emitted frame.
func (w *Worklet) FrameSize() int { return w.chunker.FrameSize() }

// Release drops buffered partial data.
func (w *Worklet) Release() { w.chunker.Reset() }

// WorkletLoader creates the worklet for one pipeline start.
type WorkletLoader func(actx *Context) (*Worklet, error)

// DefaultLoader builds plain worklets of bufferSize samples.
func DefaultLoader(bufferSize int) WorkletLoader {
	return func(actx *Context) (*Worklet, error) {
		f := actx.Format()
		if f.SampleRate <= 0 || f.Channels <= 0 {
			return nil, fmt.Errorf("capture: invalid context format %v", f)
		}
		return NewWorklet(f, bufferSize), nil
	}
}
