package audio

// DefaultChunkSamples is the number of samples per outbound capture frame.
const DefaultChunkSamples = 2048

// Chunker re-frames an arbitrary stream of PCM buffers into fixed-size
// frames. Leftover bytes are carried into the next Push. Not safe for
// concurrent use.
type Chunker struct {
	size int
	buf  []byte
}

// NewChunker returns a Chunker emitting frames of samples*channels samples.
// Non-positive samples fall back to [DefaultChunkSamples].
func NewChunker(samples, channels int) *Chunker {
	if samples <= 0 {
		samples = DefaultChunkSamples
	}
	if channels <= 0 {
		channels = 1
	}
	size := samples * channels * BytesPerSample
	return &Chunker{size: size, buf: make([]byte, 0, 2*size)}
}

// FrameSize returns the size in bytes of every emitted frame.
func (c *Chunker) FrameSize() int { return c.size }

// Push appends pcm and returns every complete frame now available. Each
// returned slice is freshly allocated and owned by the caller.
func (c *Chunker) Push(pcm []byte) [][]byte {
	c.buf = append(c.buf, pcm...)
	var frames [][]byte
	for len(c.buf) >= c.size {
		frame := make([]byte, c.size)
		copy(frame, c.buf[:c.size])
		frames = append(frames, frame)
		c.buf = c.buf[c.size:]
	}
	// Compact so the backing array doesn't grow without bound.
	if len(c.buf) > 0 && cap(c.buf)-len(c.buf) < c.size {
		c.buf = append(make([]byte, 0, 2*c.size), c.buf...)
	}
	return frames
}

// Pending returns the number of buffered bytes not yet emitted.
func (c *Chunker) Pending() int { return len(c.buf) }

// Reset discards buffered bytes.
func (c *Chunker) Reset() { c.buf = c.buf[:0] }
