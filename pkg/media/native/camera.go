package native

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/cruso003/JobGenie-sub001/pkg/media"
	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

var _ media.VideoTrack = (*camera)(nil)

// camera keeps reading from the capture device so Snapshot always sees the
// newest frame rather than a stale one sitting in the driver queue.
type camera struct {
	id  string
	cap *gocv.VideoCapture

	mu     sync.Mutex
	latest gocv.Mat
	live   bool

	stopOnce sync.Once
	done     chan struct{}
	stopped  chan struct{}
}

func openCamera(c media.VideoConstraints) (*camera, error) {
	var src any = 0
	if c.DeviceID != "" {
		if n, err := strconv.Atoi(c.DeviceID); err == nil {
			src = n
		} else {
			src = c.DeviceID
		}
	}

	vc, err := gocv.OpenVideoCapture(src)
	if err != nil {
		return nil, deviceError("open camera", err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, types.NewError(types.KindDevice, "open camera", "", fmt.Errorf("camera %v not available", src))
	}
	if c.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	}
	if c.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	}

	cam := &camera{
		id:      "cam-" + uuid.NewString()[:8],
		cap:     vc,
		latest:  gocv.NewMat(),
		live:    true,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go cam.readLoop()
	slog.Debug("native: camera opened", "id", cam.id, "source", src)
	return cam, nil
}

func (c *camera) readLoop() {
	defer close(c.stopped)

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		select {
		case <-c.done:
			return
		default:
		}
		if ok := c.cap.Read(&frame); !ok {
			select {
			case <-c.done:
			default:
				slog.Warn("native: camera stopped delivering frames", "id", c.id)
				c.mu.Lock()
				c.live = false
				c.mu.Unlock()
			}
			return
		}
		if frame.Empty() {
			continue
		}
		c.mu.Lock()
		frame.CopyTo(&c.latest)
		c.mu.Unlock()
	}
}

func (c *camera) ID() string       { return c.id }
func (c *camera) Kind() media.Kind { return media.KindVideo }

func (c *camera) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// Snapshot converts the newest frame. Before the first frame it returns nil.
func (c *camera) Snapshot() (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live {
		return nil, errors.New("native: camera stopped")
	}
	if c.latest.Empty() {
		return nil, nil
	}
	img, err := c.latest.ToImage()
	if err != nil {
		return nil, fmt.Errorf("native: convert frame: %w", err)
	}
	return img, nil
}

// Stop ends the read loop and releases the device. Idempotent.
func (c *camera) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.done)
		// VideoCapture is not safe for concurrent use; wait for the
		// in-flight Read to return before closing it.
		<-c.stopped
		err = c.cap.Close()

		c.mu.Lock()
		c.live = false
		c.latest.Close()
		c.mu.Unlock()
	})
	if err != nil {
		return fmt.Errorf("native: close camera: %w", err)
	}
	return nil
}
