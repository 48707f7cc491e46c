package native

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"

	"github.com/cruso003/JobGenie-sub001/pkg/audio"
	"github.com/cruso003/JobGenie-sub001/pkg/media"
)

var _ media.AudioTrack = (*microphone)(nil)

const micPeriod = 20 * time.Millisecond

type microphone struct {
	id     string
	device *malgo.Device
	format audio.Format
	frames chan audio.AudioFrame

	mu      sync.Mutex
	live    bool
	dropped int
	started time.Time

	stopOnce sync.Once
	stopErr  error
}

// openMicrophone starts an s16 capture device. Echo cancellation, noise
// suppression and gain control are left to the OS audio stack; miniaudio
// does not expose them.
func openMicrophone(ctx malgo.Context, c media.AudioConstraints) (*microphone, error) {
	m := &microphone{
		id:      "mic-" + uuid.NewString()[:8],
		format:  c.Format(),
		frames:  make(chan audio.AudioFrame, 32),
		live:    true,
		started: time.Now(),
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(c.Channels)
	cfg.SampleRate = uint32(c.SampleRate)
	cfg.PeriodSizeInMilliseconds = uint32(micPeriod / time.Millisecond)

	dev, err := malgo.InitDevice(ctx, cfg, malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) { m.deliver(in) },
		Stop: func() { m.end() },
	})
	if err != nil {
		return nil, deviceError("open microphone", err)
	}
	m.device = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, deviceError("start microphone", err)
	}
	slog.Debug("native: microphone started", "id", m.id, "format", m.format.String())
	return m, nil
}

// deliver runs on the miniaudio thread and must not block.
func (m *microphone) deliver(in []byte) {
	buf := make([]byte, len(in))
	copy(buf, in)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live {
		return
	}
	select {
	case m.frames <- audio.AudioFrame{
		Data:       buf,
		SampleRate: m.format.SampleRate,
		Channels:   m.format.Channels,
		Timestamp:  time.Since(m.started),
	}:
	default:
		m.dropped++
	}
}

func (m *microphone) end() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live {
		return
	}
	m.live = false
	close(m.frames)
	if m.dropped > 0 {
		slog.Warn("native: microphone dropped buffers", "id", m.id, "dropped", m.dropped)
	}
}

func (m *microphone) ID() string                      { return m.id }
func (m *microphone) Kind() media.Kind                { return media.KindAudio }
func (m *microphone) Format() audio.Format            { return m.format }
func (m *microphone) Frames() <-chan audio.AudioFrame { return m.frames }

func (m *microphone) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// Stop halts the device and closes Frames. Idempotent.
func (m *microphone) Stop() error {
	m.stopOnce.Do(func() {
		if m.device != nil {
			if err := m.device.Stop(); err != nil {
				m.stopErr = fmt.Errorf("native: stop microphone: %w", err)
			}
			m.device.Uninit()
		}
		m.end()
	})
	return m.stopErr
}
