package capture

import (
	"sync"

	"github.com/cruso003/JobGenie-sub001/pkg/audio"
)

// Context is the audio processing context of one interview. Worklets are
// created against it and refuse to start once it is closed.
type Context struct {
	format audio.Format

	mu     sync.Mutex
	closed bool
}

// NewContext returns an open context producing frames in format.
func NewContext(format audio.Format) *Context {
	return &Context{format: format}
}

// Format is the PCM format every worklet of this context emits.
func (c *Context) Format() audio.Format { return c.format }

// Closed reports whether Close was called.
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close releases the context. Idempotent.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
