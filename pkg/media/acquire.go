package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

// Stream is a combined camera and microphone stream.
type Stream struct {
	video VideoTrack
	audio AudioTrack

	stopOnce sync.Once
	stopErr  error
}

// NewStream bundles already-open tracks. Both must be non-nil.
func NewStream(video VideoTrack, audio AudioTrack) *Stream {
	return &Stream{video: video, audio: audio}
}

// Video returns the camera track.
func (s *Stream) Video() VideoTrack { return s.video }

// Audio returns the microphone track.
func (s *Stream) Audio() AudioTrack { return s.audio }

// Tracks returns both tracks, video first.
func (s *Stream) Tracks() []Track { return []Track{s.video, s.audio} }

// Live reports whether any track is still live.
func (s *Stream) Live() bool {
	return s.video.Live() || s.audio.Live()
}

// Stop stops every track. Later calls return the first call's result.
func (s *Stream) Stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = stopAll(s.Tracks()...)
	})
	return s.stopErr
}

// Acquire opens the camera and then the microphone. If either fails, every
// track opened so far is stopped before the error is returned, so a failed
// acquisition never leaves a device running.
//
// Returned errors are *types.Error values of kind Permission or Device.
func Acquire(ctx context.Context, dev Device, c Constraints) (*Stream, error) {
	if dev == nil {
		return nil, types.NewError(types.KindDevice, "acquire", "no capture device configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, types.NewError(types.KindDevice, "acquire", "", err)
	}

	video, err := dev.OpenVideo(c.Video)
	if err != nil {
		return nil, classify("open camera", err)
	}

	if err := ctx.Err(); err != nil {
		_ = stopAll(video)
		return nil, types.NewError(types.KindDevice, "acquire", "", err)
	}

	mic, err := dev.OpenAudio(c.Audio)
	if err != nil {
		if stopErr := stopAll(video); stopErr != nil {
			slog.Warn("media: failed to release camera after microphone error", "err", stopErr)
		}
		return nil, classify("open microphone", err)
	}

	slog.Debug("media: stream acquired",
		"video", video.ID(),
		"audio", mic.ID(),
		"audio_format", mic.Format().String(),
	)
	return NewStream(video, mic), nil
}

// classify keeps an adapter-supplied kind and maps everything else to a
// device error.
func classify(op string, err error) error {
	var te *types.Error
	if errors.As(err, &te) && te.Kind != types.KindUnknown {
		return types.NewError(te.Kind, op, te.Msg, err)
	}
	return types.NewError(types.KindDevice, op, "", err)
}

func stopAll(tracks ...Track) error {
	var errs []error
	for _, t := range tracks {
		if t == nil {
			continue
		}
		if err := t.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("media: stop %s track %s: %w", t.Kind(), t.ID(), err))
		}
	}
	return errors.Join(errs...)
}
