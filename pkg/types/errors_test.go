package types_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

func TestError_IsMatchesByKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", types.NewError(types.KindTransport, "connect", "quota exceeded", nil))

	if !errors.Is(err, types.ErrTransport) {
		t.Error("expected errors.Is(err, ErrTransport) to be true")
	}
	if errors.Is(err, types.ErrDevice) {
		t.Error("transport error must not match ErrDevice")
	}
	if got := types.KindOf(err); got != types.KindTransport {
		t.Errorf("KindOf = %v, want transport", got)
	}
	if got := types.UserMessage(err); got != "quota exceeded" {
		t.Errorf("UserMessage = %q, want %q", got, "quota exceeded")
	}
}

func TestError_DefaultMessage(t *testing.T) {
	t.Parallel()

	err := types.NewError(types.KindLimit, "authorize", "", nil)
	if err.Message() != types.ErrLimit.Msg {
		t.Errorf("Message = %q, want %q", err.Message(), types.ErrLimit.Msg)
	}
	if err.Retryable() {
		t.Error("limit errors must not be retryable")
	}
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("EOF")
	err := types.NewError(types.KindDevice, "read", "", cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
	if !err.Retryable() {
		t.Error("device errors should be retryable")
	}
}

func TestUserMessage_Unclassified(t *testing.T) {
	t.Parallel()

	if got := types.UserMessage(errors.New("boom")); got != "boom" {
		t.Errorf("UserMessage = %q, want boom", got)
	}
	if got := types.UserMessage(nil); got != "" {
		t.Errorf("UserMessage(nil) = %q, want empty", got)
	}
}

func TestInterviewContext_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ctx     types.InterviewContext
		wantErr bool
	}{
		{"complete", types.InterviewContext{Type: "technical", Role: "SRE", Company: "Acme"}, false},
		{"no company", types.InterviewContext{Type: "behavioral", Role: "PM"}, false},
		{"missing role", types.InterviewContext{Type: "technical"}, true},
		{"empty", types.InterviewContext{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.ctx.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLevelPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want int
	}{
		{-0.5, 0},
		{0, 0},
		{0.004, 0},
		{0.5, 50},
		{0.996, 100},
		{3, 100},
	}
	for _, tt := range tests {
		if got := types.LevelPercent(tt.in); got != tt.want {
			t.Errorf("LevelPercent(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestError_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *types.Error
		want string
	}{
		{"kind and op", types.NewError(types.KindTransport, "receive", "boom", nil), "transport receive: boom"},
		{"op equal to kind", types.NewError(types.KindTransport, "transport", "boom", nil), "transport: boom"},
		{"no op", types.NewError(types.KindSetup, "", "", nil), "setup: audio pipeline setup failed"},
		{"with cause", types.NewError(types.KindDevice, "read", "mic gone", errors.New("EOF")), "device read: mic gone: EOF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
