package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/cruso003/JobGenie-sub001/pkg/provider/live"
	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

var _ live.Session = (*session)(nil)

// ── session ────────────────────────────────────────────────────────────────────

type session struct {
	p      *Provider
	player live.Player
	cb     live.Callbacks

	mu       sync.Mutex
	status   types.Status
	used     bool // Connect was called once
	closed   bool // Disconnect was called
	conn     *websocket.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	errFired bool

	done      chan struct{}
	closeOnce sync.Once
}

// Connect dials the endpoint and writes the setup frame.
func (s *session) Connect(ctx context.Context, ic types.InterviewContext) error {
	s.mu.Lock()
	switch {
	case s.status == types.StatusConnecting || s.status == types.StatusConnected:
		s.mu.Unlock()
		return nil
	case s.status == types.StatusError:
		s.mu.Unlock()
		return types.NewError(types.KindTransport, "connect", "session already failed; start a new one", nil)
	case s.used || s.closed:
		s.mu.Unlock()
		return types.NewError(types.KindTransport, "connect", "session already closed; start a new one", nil)
	}
	s.used = true
	s.status = types.StatusConnecting
	s.mu.Unlock()

	setup, err := s.p.setupFrame(ic)
	if err != nil {
		s.setStatus(types.StatusError)
		return types.NewError(types.KindTransport, "connect", "could not prepare interview setup", err)
	}

	conn, resp, err := websocket.Dial(ctx, s.p.endpoint(), &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Content-Type": []string{"application/json"},
		},
	})
	if err != nil {
		s.setStatus(types.StatusError)
		return types.NewError(types.KindTransport, "connect", dialMessage(resp), fmt.Errorf("gemini: dial: %w", err))
	}
	conn.SetReadLimit(16 << 20)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "session closed")
		return nil
	}
	s.conn = conn
	s.ctx, s.cancel = context.WithCancel(context.Background())
	sessCtx := s.ctx
	s.mu.Unlock()

	if err := s.writeJSON(sessCtx, setup); err != nil {
		s.mu.Lock()
		s.status = types.StatusError
		s.cancel()
		s.mu.Unlock()
		conn.Close(websocket.StatusInternalError, "setup failed")
		return types.NewError(types.KindTransport, "connect", "", fmt.Errorf("gemini: setup: %w", err))
	}
	slog.Debug("gemini: setup sent", "model", s.p.model, "interview", ic.String())

	go s.receiveLoop(sessCtx, conn)
	go s.keepaliveLoop(sessCtx, conn)
	return nil
}

// dialMessage turns a rejected handshake into user-facing text.
func dialMessage(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "the interview service rejected the API key"
	case http.StatusTooManyRequests:
		return "the interview service is busy; try again shortly"
	}
	return fmt.Sprintf("the interview service refused the connection (%s)", resp.Status)
}

// SendMediaChunk writes one realtimeInput frame while connected.
func (s *session) SendMediaChunk(data, mimeType string) bool {
	s.mu.Lock()
	if s.status != types.StatusConnected {
		s.mu.Unlock()
		return false
	}
	ctx, conn := s.ctx, s.conn
	s.mu.Unlock()

	if mimeType == types.MIMEAudioPCM {
		mimeType = types.PCMMIMEType(s.p.inputRate)
	}
	msg := realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []inlineData{{MIMEType: mimeType, Data: data}},
		},
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	b, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	if err := conn.Write(wctx, websocket.MessageText, b); err != nil {
		// The receive loop reports the broken connection.
		slog.Debug("gemini: media chunk write failed", "mime", mimeType, "err", err)
		return false
	}
	return true
}

// Disconnect closes the connection. The error state survives Disconnect.
func (s *session) Disconnect() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.status != types.StatusError {
		s.status = types.StatusDisconnected
	}
	conn, cancel := s.conn, s.cancel
	s.mu.Unlock()

	s.closeOnce.Do(func() { close(s.done) })
	if cancel != nil {
		cancel() // unblocks receiveLoop and keepaliveLoop
	}
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "interview ended")
	}
	return nil
}

// Status returns the current state.
func (s *session) Status() types.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *session) setStatus(st types.Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *session) writeJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("gemini: marshal: %w", err)
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return s.conn.Write(wctx, websocket.MessageText, data)
}

// receiveLoop reads frames until the session ends. Every abnormal exit goes
// through fail.
func (s *session) receiveLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.fail(closeMessage(err), err)
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.fail("received a malformed frame from the interview service", err)
			return
		}
		if !s.handleServerMessage(&msg) {
			return
		}
	}
}

// closeMessage prefers the close reason sent by the service.
func closeMessage(err error) string {
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Reason != "" {
			return ce.Reason
		}
		if ce.Code == websocket.StatusNormalClosure {
			return "the interview service ended the session"
		}
		return fmt.Sprintf("connection closed by the interview service (%d)", ce.Code)
	}
	return "lost connection to the interview service"
}

// handleServerMessage dispatches one frame. It returns false when the
// session failed and the loop must stop.
func (s *session) handleServerMessage(msg *serverMessage) bool {
	if msg.Error != nil {
		text := msg.Error.Message
		if text == "" {
			text = "the interview service reported an error"
		}
		s.fail(text, fmt.Errorf("gemini: service error %d %s", msg.Error.Code, msg.Error.Status))
		return false
	}
	if msg.SetupComplete != nil {
		s.markReady()
	}
	if msg.ServerContent != nil {
		if err := s.handleServerContent(msg.ServerContent); err != nil {
			s.fail("received a malformed frame from the interview service", err)
			return false
		}
	}
	if msg.ToolCall != nil {
		slog.Debug("gemini: ignoring tool call; no tools are declared")
	}
	if msg.GoAway != nil {
		slog.Warn("gemini: service will close the session soon", "time_left", msg.GoAway.TimeLeft)
	}
	return true
}

func (s *session) markReady() {
	s.mu.Lock()
	if s.status != types.StatusConnecting {
		s.mu.Unlock()
		return
	}
	s.status = types.StatusConnected
	s.mu.Unlock()

	slog.Info("gemini: session ready", "model", s.p.model)
	if s.cb.OnReady != nil {
		s.cb.OnReady()
	}
}

func (s *session) handleServerContent(sc *serverContent) error {
	if sc.Interrupted && s.player != nil {
		s.player.Interrupt()
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "audio/") {
				pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return fmt.Errorf("gemini: decode audio: %w", err)
				}
				if len(pcm) > 0 && s.player != nil {
					s.player.Enqueue(pcm)
				}
			}
			if p.Text != "" && s.cb.OnTextReceived != nil {
				s.cb.OnTextReceived(p.Text)
			}
		}
	}
	if t := sc.InputTranscription; t != nil && t.Text != "" && s.cb.OnUserTranscription != nil {
		s.cb.OnUserTranscription(t.Text)
	}
	if t := sc.OutputTranscription; t != nil && t.Text != "" && s.cb.OnTextReceived != nil {
		s.cb.OnTextReceived(t.Text)
	}
	return nil
}

// fail moves the session to the terminal error state and reports message
// once. Failures after Disconnect are ignored.
func (s *session) fail(message string, cause error) {
	s.mu.Lock()
	if s.closed || s.errFired {
		s.mu.Unlock()
		return
	}
	s.errFired = true
	s.status = types.StatusError
	conn, cancel := s.conn, s.cancel
	s.mu.Unlock()

	slog.Warn("gemini: session failed", "message", message, "err", cause)
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close(websocket.StatusInternalError, "client error")
	}
	if s.cb.OnError != nil {
		s.cb.OnError(message)
	}
}

// keepaliveLoop sends WebSocket pings to keep the connection alive.
func (s *session) keepaliveLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, keepaliveTimeout)
			_ = conn.Ping(pingCtx)
			cancel()
		}
	}
}

// forwardSpeaking and forwardLevel route player notifications out while the
// session is connected.
func (s *session) forwardSpeaking(speaking bool) {
	if s.cb.OnSpeakingStateChanged != nil && s.Status() == types.StatusConnected {
		s.cb.OnSpeakingStateChanged(speaking)
	}
}

func (s *session) forwardLevel(level int) {
	if s.cb.OnOutputAudioLevel != nil && s.Status() == types.StatusConnected {
		s.cb.OnOutputAudioLevel(level)
	}
}
