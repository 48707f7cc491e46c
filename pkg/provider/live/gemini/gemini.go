// Package gemini implements the live.Provider interface for Google's Gemini
// Live API.
//
// Each session opens a WebSocket to the BidiGenerateContent endpoint and
// exchanges JSON frames. The first frame is the setup message carrying the
// interviewer instructions rendered from the interview context; microphone PCM
// and camera JPEG chunks follow as realtimeInput frames once the service has
// answered with setupComplete.
package gemini

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/cruso003/JobGenie-sub001/pkg/provider/live"
	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

var _ live.Provider = (*Provider)(nil)

const (
	defaultModel   = "gemini-2.0-flash-live-001"
	defaultBaseURL = "wss://generativelanguage.googleapis.com/ws"

	keepaliveInterval = 20 * time.Second
	keepaliveTimeout  = 5 * time.Second
	writeTimeout      = 5 * time.Second
)

// DefaultInstructions is the interviewer prompt used unless overridden with
// [WithInstructions]. It is a text/template executed with the
// [types.InterviewContext].
const DefaultInstructions = `You are an experienced interviewer conducting a {{.Type}} interview for the role of {{.Role}}{{if .Company}} at {{.Company}}{{end}}.
Ask one question at a time and wait for the candidate to answer before moving on.
Keep your turns short and conversational. Follow up on vague answers.
You can see the candidate through their camera; comment on presentation only when asked.
Start by greeting the candidate and asking them to introduce themselves.`

// ParseInstructions validates an instructions template.
func ParseInstructions(text string) (*template.Template, error) {
	tmpl, err := template.New("instructions").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("gemini: parse instructions: %w", err)
	}
	return tmpl, nil
}

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Gemini model used for sessions.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithVoice selects a prebuilt voice such as "Puck" or "Kore".
func WithVoice(voice string) Option {
	return func(p *Provider) { p.voice = voice }
}

// WithInstructions replaces the interviewer prompt template. An invalid
// template makes every Connect fail; validate with [ParseInstructions] first.
func WithInstructions(text string) Option {
	return func(p *Provider) { p.instructions = text }
}

// WithInputSampleRate sets the rate announced on outbound audio chunks when
// the caller passes a bare "audio/pcm" MIME type.
func WithInputSampleRate(hz int) Option {
	return func(p *Provider) { p.inputRate = hz }
}

// ── Provider ───────────────────────────────────────────────────────────────────

// Provider implements live.Provider for Google's Gemini Live API.
type Provider struct {
	apiKey       string
	model        string
	baseURL      string
	voice        string
	instructions string
	inputRate    int
}

// New creates a Gemini Live Provider with the given API key and options.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		baseURL:      defaultBaseURL,
		instructions: DefaultInstructions,
		inputRate:    24000,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// NewSession returns an unconnected session.
func (p *Provider) NewSession(player live.Player, cb live.Callbacks) live.Session {
	s := &session{
		p:      p,
		player: player,
		cb:     cb,
		status: types.StatusDisconnected,
		done:   make(chan struct{}),
	}
	if player != nil {
		player.Notify(s.forwardSpeaking, s.forwardLevel)
	}
	return s
}

func (p *Provider) endpoint() string {
	return fmt.Sprintf(
		"%s/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent?key=%s",
		p.baseURL, p.apiKey,
	)
}

// renderInstructions executes the instructions template for ic.
func (p *Provider) renderInstructions(ic types.InterviewContext) (string, error) {
	tmpl, err := ParseInstructions(p.instructions)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ic); err != nil {
		return "", fmt.Errorf("gemini: render instructions: %w", err)
	}
	return buf.String(), nil
}

func (p *Provider) setupFrame(ic types.InterviewContext) (setupMessage, error) {
	instructions, err := p.renderInstructions(ic)
	if err != nil {
		return setupMessage{}, err
	}

	msg := setupMessage{
		Setup: setupConfig{
			Model: fmt.Sprintf("models/%s", p.model),
			GenerationConfig: generationConfig{
				ResponseModalities: []string{"AUDIO"},
			},
			SystemInstruction: &content{
				Parts: []part{{Text: instructions}},
			},
			InputAudioTranscription:  &struct{}{},
			OutputAudioTranscription: &struct{}{},
		},
	}
	if p.voice != "" {
		msg.Setup.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: p.voice},
			},
		}
	}
	return msg, nil
}
