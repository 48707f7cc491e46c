// Package types defines the data shared between the interview pipeline
// packages: the interview context handed over by the host, connection status,
// outbound media chunks, transcription events and the error taxonomy.
//
// Cross-cutting structures live here to avoid import cycles between the
// transport, capture and lifecycle packages.
package types

import (
	"errors"
	"fmt"
	"time"
)

// InterviewContext describes the mock interview the user asked for. It is
// supplied once at start and never changes for the lifetime of a session.
type InterviewContext struct {
	// Type is the interview flavour, e.g. "behavioral" or "technical".
	Type string `json:"type" yaml:"type"`

	// Role is the target job title.
	Role string `json:"role" yaml:"role"`

	// Company is optional.
	Company string `json:"company,omitempty" yaml:"company"`
}

// Validate reports missing required fields.
func (c InterviewContext) Validate() error {
	var errs []error
	if c.Type == "" {
		errs = append(errs, errors.New("interview type is required"))
	}
	if c.Role == "" {
		errs = append(errs, errors.New("interview role is required"))
	}
	return errors.Join(errs...)
}

// String returns a short human readable label such as
// "technical interview for Backend Engineer at Acme".
func (c InterviewContext) String() string {
	s := fmt.Sprintf("%s interview for %s", c.Type, c.Role)
	if c.Company != "" {
		s += " at " + c.Company
	}
	return s
}

// Status is the connection status of a live interview session.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Speaker tags who produced a piece of transcribed text.
type Speaker string

const (
	SpeakerHuman Speaker = "human"
	SpeakerAI    Speaker = "ai"
)

// TranscriptionEvent is one fragment of recognised or synthesised speech.
type TranscriptionEvent struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// MIME types used on outbound media chunks.
const (
	MIMEAudioPCM  = "audio/pcm"
	MIMEImageJPEG = "image/jpeg"
)

// PCMMIMEType returns the audio MIME type annotated with its sample rate,
// e.g. "audio/pcm;rate=24000".
func PCMMIMEType(sampleRate int) string {
	return fmt.Sprintf("%s;rate=%d", MIMEAudioPCM, sampleRate)
}

// MediaChunk is one unit of outbound media. Data is base64 encoded.
type MediaChunk struct {
	MIMEType string
	Data     string
}

// LevelPercent scales a normalised 0–1 amplitude to the 0–100 range used by
// level meters, clamping out-of-range input.
func LevelPercent(norm float64) int {
	switch {
	case norm <= 0:
		return 0
	case norm >= 1:
		return 100
	}
	return int(norm*100 + 0.5)
}
