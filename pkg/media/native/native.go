// Package native implements the media interfaces on real hardware.
//
// The microphone is captured through miniaudio (gen2brain/malgo), the camera
// through OpenCV (gocv), and model audio is played through ebitengine/oto.
// All three require cgo and the corresponding system libraries.
package native

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/cruso003/JobGenie-sub001/pkg/media"
	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

var _ media.Device = (*Device)(nil)

// Device opens microphone and camera tracks on the local machine. One
// miniaudio context is shared by every microphone track it opens.
type Device struct {
	mu     sync.Mutex
	actx   *malgo.AllocatedContext
	closed bool
}

// NewDevice initialises the miniaudio backend.
func NewDevice() (*Device, error) {
	actx, err := malgo.InitContext(nil, malgo.ContextConfig{
		ThreadPriority: malgo.ThreadPriorityRealtime,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("native: init audio backend: %w", err)
	}
	return &Device{actx: actx}, nil
}

// OpenAudio starts a capture device with the requested format.
func (d *Device) OpenAudio(c media.AudioConstraints) (media.AudioTrack, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, types.NewError(types.KindDevice, "open microphone", "audio backend closed", nil)
	}
	mic, err := openMicrophone(d.actx.Context, c)
	if err != nil {
		return nil, err
	}
	return mic, nil
}

// OpenVideo opens the camera selected by c.DeviceID.
func (d *Device) OpenVideo(c media.VideoConstraints) (media.VideoTrack, error) {
	cam, err := openCamera(c)
	if err != nil {
		return nil, err
	}
	return cam, nil
}

// Close releases the miniaudio context. Tracks must be stopped first.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.actx.Uninit(); err != nil {
		return fmt.Errorf("native: uninit audio backend: %w", err)
	}
	d.actx.Free()
	return nil
}

// deviceError maps an OS failure to a permission or device error. Platforms
// report denial only in the message text.
func deviceError(op string, err error) error {
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"permission", "denied", "not authorized", "access"} {
		if strings.Contains(msg, hint) {
			return types.NewError(types.KindPermission, op, "", err)
		}
	}
	return types.NewError(types.KindDevice, op, "", err)
}
