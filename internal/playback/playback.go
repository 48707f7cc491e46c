// Package playback plays the model's synthesised speech and reports whether
// it is audible.
//
// A [Controller] owns one dispatch goroutine that writes queued PCM to a
// [Sink] in small slices. The sink is expected to block for roughly the
// playback duration of each slice (a real speaker does), which lets the
// controller report a per-slice output level and a speaking state that tracks
// what is actually coming out of the speaker:
//
//   - speaking turns true before the first slice of an utterance is written;
//   - it turns false only after the last queued slice was written and no new
//     audio arrived within the idle grace period.
//
// The speaking state is what gates the microphone during model turns.
package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cruso003/JobGenie-sub001/pkg/audio"
	"github.com/cruso003/JobGenie-sub001/pkg/provider/live"
	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

var _ live.Player = (*Controller)(nil)

const (
	// DefaultTick is the slice length written to the sink per step.
	DefaultTick = 50 * time.Millisecond

	// DefaultIdleGrace bridges short gaps between streamed chunks of the
	// same utterance, and covers audio still buffered inside the sink.
	DefaultIdleGrace = 200 * time.Millisecond
)

// Sink receives PCM for playback. Write should block until the device can
// take more data.
type Sink interface {
	Write(pcm []byte) error
}

// Flusher is implemented by sinks that can drop audio they already buffered.
type Flusher interface {
	Flush()
}

// Option configures a [Controller] during construction.
type Option func(*Controller)

// WithTick sets the slice length written per step.
func WithTick(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.tick = d
		}
	}
}

// WithIdleGrace sets how long the queue must stay empty before speaking turns
// false. Zero ends the utterance as soon as the queue drains.
func WithIdleGrace(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.idleGrace = d
		}
	}
}

// WithTap mirrors every slice written to the sink to fn. Used for recording.
func WithTap(fn func(pcm []byte)) Option {
	return func(c *Controller) { c.tap = fn }
}

// Controller is a FIFO playback queue with speaking-state and level
// reporting. All exported methods are safe for concurrent use.
type Controller struct {
	sink      Sink
	format    audio.Format
	tick      time.Duration
	idleGrace time.Duration
	tap       func([]byte)

	mu         sync.Mutex
	queue      [][]byte
	queuedSize int
	speaking   bool
	level      int
	onSpeaking func(bool)
	onLevel    func(int)
	closed     bool
	writeErrs  int

	notify  chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

// New starts a Controller writing format-shaped PCM to sink. Call Close to
// stop the dispatch goroutine.
func New(sink Sink, format audio.Format, opts ...Option) *Controller {
	c := &Controller{
		sink:      sink,
		format:    format,
		tick:      DefaultTick,
		idleGrace: DefaultIdleGrace,
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	go c.dispatch()
	return c
}

// Notify registers the speaking-state and level observers, replacing any
// previous ones.
func (c *Controller) Notify(onSpeaking func(bool), onLevel func(int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSpeaking, c.onLevel = onSpeaking, onLevel
}

// Enqueue appends pcm to the playback queue. A trailing odd byte is dropped.
func (c *Controller) Enqueue(pcm []byte) {
	pcm = pcm[:len(pcm)-len(pcm)%audio.BytesPerSample]
	if len(pcm) == 0 {
		return
	}

	step := c.format.Bytes(c.tick)
	if step <= 0 {
		step = len(pcm)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	for len(pcm) > 0 {
		n := min(step, len(pcm))
		c.queue = append(c.queue, pcm[:n])
		c.queuedSize += n
		pcm = pcm[n:]
	}
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Interrupt drops every queued slice and flushes the sink if it can.
// Speaking turns false once the slice being written finishes and the idle
// grace elapses.
func (c *Controller) Interrupt() {
	c.mu.Lock()
	dropped := c.queuedSize
	c.queue = nil
	c.queuedSize = 0
	c.mu.Unlock()

	if f, ok := c.sink.(Flusher); ok {
		f.Flush()
	}
	if dropped > 0 {
		slog.Debug("playback: interrupted", "dropped", c.format.Duration(dropped))
	}
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Speaking reports whether model audio is currently audible.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Level returns the output level of the last slice written, 0–100.
func (c *Controller) Level() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// Queued returns the playback duration still waiting in the queue.
func (c *Controller) Queued() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format.Duration(c.queuedSize)
}

// Close stops the dispatch goroutine and discards queued audio. No observer
// is invoked after Close returns. Idempotent.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.stopped
		return nil
	}
	c.closed = true
	c.queue = nil
	c.queuedSize = 0
	c.mu.Unlock()

	close(c.done)
	<-c.stopped

	c.mu.Lock()
	c.speaking = false
	c.level = 0
	c.mu.Unlock()
	return nil
}

// dispatch pulls slices off the queue and writes them to the sink. It runs
// until Close.
func (c *Controller) dispatch() {
	defer close(c.stopped)

	idle := time.NewTimer(time.Hour)
	idle.Stop()
	defer idle.Stop()
	idleArmed := false

	for {
		var idleC <-chan time.Time
		if idleArmed {
			idleC = idle.C
		}

		select {
		case <-c.done:
			return
		case <-idleC:
			idleArmed = false
			c.endUtterance()
			continue
		case <-c.notify:
		}

		if idleArmed {
			idle.Stop()
			idleArmed = false
		}
		if !c.drain() {
			return
		}
		if c.Speaking() {
			if c.idleGrace == 0 {
				c.endUtterance()
			} else {
				idle.Reset(c.idleGrace)
				idleArmed = true
			}
		}
	}
}

// drain writes queued slices until the queue is empty. It returns false if
// the controller was closed meanwhile.
func (c *Controller) drain() bool {
	for {
		select {
		case <-c.done:
			return false
		default:
		}

		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return true
		}
		slice := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]
		c.queuedSize -= len(slice)
		started := !c.speaking
		c.speaking = true
		level := types.LevelPercent(audio.Level(slice))
		c.level = level
		onSpeaking, onLevel := c.onSpeaking, c.onLevel
		c.mu.Unlock()

		if started && onSpeaking != nil {
			onSpeaking(true)
		}
		if onLevel != nil {
			onLevel(level)
		}
		if c.tap != nil {
			c.tap(slice)
		}
		if err := c.sink.Write(slice); err != nil {
			c.mu.Lock()
			c.writeErrs++
			first := c.writeErrs == 1
			c.mu.Unlock()
			if first {
				slog.Warn("playback: sink write failed", "err", err)
			}
		}
	}
}

func (c *Controller) endUtterance() {
	c.mu.Lock()
	if !c.speaking || len(c.queue) > 0 {
		c.mu.Unlock()
		return
	}
	c.speaking = false
	c.level = 0
	onSpeaking, onLevel := c.onSpeaking, c.onLevel
	c.mu.Unlock()

	if onLevel != nil {
		onLevel(0)
	}
	if onSpeaking != nil {
		onSpeaking(false)
	}
}
