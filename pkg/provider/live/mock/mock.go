// Package mock provides a scripted live.Provider for tests.
//
// The mock never touches the network. Tests drive the inbound side through
// the Session's Emit* methods and inspect what was sent through Chunks.
//
//	p := &mock.Provider{}
//	sess := p.NewSession(player, callbacks)
//	_ = sess.Connect(ctx, ic)
//	p.Last().EmitReady()
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/cruso003/JobGenie-sub001/pkg/provider/live"
	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

var (
	_ live.Provider = (*Provider)(nil)
	_ live.Session  = (*Session)(nil)
)

// Provider is a mock [live.Provider].
type Provider struct {
	mu sync.Mutex

	// ConnectErr, if non-nil, is returned by every session's Connect.
	ConnectErr error

	// AutoReady makes Connect fire OnReady before returning.
	AutoReady bool

	sessions []*Session
}

// NewSession records and returns a new Session.
func (p *Provider) NewSession(player live.Player, cb live.Callbacks) live.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &Session{
		player:     player,
		cb:         cb,
		status:     types.StatusDisconnected,
		connectErr: p.ConnectErr,
		autoReady:  p.AutoReady,
	}
	if player != nil {
		player.Notify(s.forwardSpeaking, s.forwardLevel)
	}
	p.sessions = append(p.sessions, s)
	return s
}

// Sessions returns every session created so far.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Session(nil), p.sessions...)
}

// Last returns the most recent session, or nil.
func (p *Provider) Last() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) == 0 {
		return nil
	}
	return p.sessions[len(p.sessions)-1]
}

// Session is a mock [live.Session].
type Session struct {
	mu         sync.Mutex
	player     live.Player
	cb         live.Callbacks
	status     types.Status
	connectErr error
	autoReady  bool
	context    types.InterviewContext
	readyFired bool
	chunks     []types.MediaChunk
	dropped    int

	ConnectCalls    int
	DisconnectCalls int
}

// Connect records ic and moves to connecting.
func (s *Session) Connect(_ context.Context, ic types.InterviewContext) error {
	s.mu.Lock()
	s.ConnectCalls++
	switch s.status {
	case types.StatusConnecting, types.StatusConnected:
		s.mu.Unlock()
		return nil
	case types.StatusError:
		s.mu.Unlock()
		return types.NewError(types.KindTransport, "connect", "session already failed", nil)
	}
	if s.connectErr != nil {
		s.status = types.StatusError
		err := s.connectErr
		s.mu.Unlock()
		return err
	}
	s.context = ic
	s.status = types.StatusConnecting
	auto := s.autoReady
	s.mu.Unlock()

	if auto {
		s.EmitReady()
	}
	return nil
}

// SendMediaChunk records the chunk while connected.
func (s *Session) SendMediaChunk(data, mimeType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != types.StatusConnected {
		s.dropped++
		return false
	}
	s.chunks = append(s.chunks, types.MediaChunk{Data: data, MIMEType: mimeType})
	return true
}

// Disconnect is idempotent. The error state survives it.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DisconnectCalls++
	if s.status != types.StatusError {
		s.status = types.StatusDisconnected
	}
	return nil
}

// Status returns the current state.
func (s *Session) Status() types.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Context returns the interview context passed to Connect.
func (s *Session) Context() types.InterviewContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context
}

// Chunks returns every chunk accepted so far.
func (s *Session) Chunks() []types.MediaChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.MediaChunk(nil), s.chunks...)
}

// CountChunks counts accepted chunks whose MIME type starts with prefix.
func (s *Session) CountChunks(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.chunks {
		if strings.HasPrefix(c.MIMEType, prefix) {
			n++
		}
	}
	return n
}

// Dropped counts chunks rejected because the session was not connected.
func (s *Session) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// EmitReady moves a connecting session to connected and fires OnReady once.
func (s *Session) EmitReady() {
	s.mu.Lock()
	if s.status != types.StatusConnecting || s.readyFired {
		s.mu.Unlock()
		return
	}
	s.readyFired = true
	s.status = types.StatusConnected
	s.mu.Unlock()
	if s.cb.OnReady != nil {
		s.cb.OnReady()
	}
}

// EmitText delivers a model transcription fragment.
func (s *Session) EmitText(text string) {
	if s.cb.OnTextReceived != nil {
		s.cb.OnTextReceived(text)
	}
}

// EmitUserTranscription delivers a user transcription fragment.
func (s *Session) EmitUserTranscription(text string) {
	if s.cb.OnUserTranscription != nil {
		s.cb.OnUserTranscription(text)
	}
}

// EmitSpeaking fires OnSpeakingStateChanged directly.
func (s *Session) EmitSpeaking(speaking bool) { s.forwardSpeaking(speaking) }

// EmitAudio hands pcm to the player as if the service sent it.
func (s *Session) EmitAudio(pcm []byte) {
	if s.player != nil {
		s.player.Enqueue(pcm)
	}
}

// EmitError moves the session to the error state and fires OnError.
func (s *Session) EmitError(message string) {
	s.mu.Lock()
	if s.status == types.StatusError {
		s.mu.Unlock()
		return
	}
	s.status = types.StatusError
	s.mu.Unlock()
	if s.cb.OnError != nil {
		s.cb.OnError(message)
	}
}

func (s *Session) forwardSpeaking(speaking bool) {
	if s.cb.OnSpeakingStateChanged != nil && s.Status() == types.StatusConnected {
		s.cb.OnSpeakingStateChanged(speaking)
	}
}

func (s *Session) forwardLevel(level int) {
	if s.cb.OnOutputAudioLevel != nil && s.Status() == types.StatusConnected {
		s.cb.OnOutputAudioLevel(level)
	}
}
