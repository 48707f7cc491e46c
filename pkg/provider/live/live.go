// Package live defines the Transport Session: the single duplex connection
// between an interview and a realtime generative-AI service.
//
// A Session accepts base64 media chunks (microphone PCM and camera JPEG) and
// demultiplexes the service's replies into callbacks: ready, user and model
// transcriptions, and errors. Synthesised audio is handed to a [Player]; the
// player's speaking state and output level are routed back out through the
// same callbacks so the owner has one place to observe the model.
//
// A Session serves exactly one interview. Its state machine is
//
//	disconnected -> connecting -> connected -> {disconnected | error}
//
// and error is terminal: recovery requires a new Session.
//
// All implementations must be safe for concurrent use.
package live

import (
	"context"

	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

// Callbacks receive inbound events. Every field is optional. Callbacks are
// invoked from the session's receive goroutine and must not block; they must
// not call Connect or Disconnect on the same session synchronously.
type Callbacks struct {
	// OnReady fires once, when the service acknowledged the setup frame.
	OnReady func()

	// OnTextReceived carries fragments of the model's response text.
	OnTextReceived func(text string)

	// OnUserTranscription carries fragments of the user's recognised speech.
	OnUserTranscription func(text string)

	// OnSpeakingStateChanged reports whether model audio is audible.
	OnSpeakingStateChanged func(speaking bool)

	// OnOutputAudioLevel reports the playback level, 0–100.
	OnOutputAudioLevel func(level int)

	// OnError fires at most once, when the session enters the error state.
	// The message is the service-provided text when there is one.
	OnError func(message string)
}

// Player is the playback side of a session.
type Player interface {
	// Enqueue appends synthesised PCM to the playback queue.
	Enqueue(pcm []byte)

	// Interrupt discards queued audio, e.g. when the user barged in.
	Interrupt()

	// Notify registers the speaking-state and level observers. The session
	// calls it once, before Connect returns.
	Notify(onSpeaking func(bool), onLevel func(int))
}

// Session is one Transport Session.
type Session interface {
	// Connect dials the service and sends the setup frame carrying the
	// interview context. It returns once the setup frame is written; readiness
	// is signalled later through Callbacks.OnReady. Calling Connect while
	// connecting or connected is a no-op. Connect on a session in the error
	// state returns a transport error.
	Connect(ctx context.Context, ic types.InterviewContext) error

	// SendMediaChunk sends one base64 chunk. Before ready, after disconnect or
	// in the error state it silently drops the chunk and reports false.
	SendMediaChunk(data, mimeType string) bool

	// Disconnect closes the connection. Idempotent; safe in any state.
	Disconnect() error

	// Status returns the current state.
	Status() types.Status
}

// Provider creates sessions.
type Provider interface {
	// NewSession returns an unconnected session bound to player and cb.
	NewSession(player Player, cb Callbacks) Session
}
