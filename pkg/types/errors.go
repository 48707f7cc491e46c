package types

import "errors"

// ErrorKind classifies pipeline failures by how the host should react.
type ErrorKind int

const (
	// KindUnknown is the zero value; it never matches a sentinel.
	KindUnknown ErrorKind = iota

	// KindPermission: camera or microphone access denied by the platform.
	KindPermission

	// KindDevice: no capture device, or a device disappeared mid-session.
	KindDevice

	// KindSetup: the audio processing stage could not be initialised.
	KindSetup

	// KindTransport: connection refused, dropped, or an erroneous frame.
	KindTransport

	// KindLimit: the authorization hook refused to start the interview.
	KindLimit
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermission:
		return "permission"
	case KindDevice:
		return "device"
	case KindSetup:
		return "setup"
	case KindTransport:
		return "transport"
	case KindLimit:
		return "limit"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrPermission = &Error{Kind: KindPermission, Msg: "camera or microphone access denied"}
	ErrDevice     = &Error{Kind: KindDevice, Msg: "capture device unavailable"}
	ErrSetup      = &Error{Kind: KindSetup, Msg: "audio pipeline setup failed"}
	ErrTransport  = &Error{Kind: KindTransport, Msg: "connection to interview service failed"}
	ErrLimit      = &Error{Kind: KindLimit, Msg: "interview limit reached"}
)

// Error is a classified pipeline failure.
//
// Msg is the user-facing text. For transport errors it carries the
// service-provided message verbatim when the service sent one.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

// NewError builds a classified error. If msg is empty the sentinel message of
// the kind is used.
func NewError(kind ErrorKind, op, msg string, err error) *Error {
	if msg == "" {
		msg = defaultMessage(kind)
	}
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" && e.Op != s {
		s += " " + e.Op
	}
	s += ": " + e.Msg
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind != KindUnknown && e.Kind == t.Kind
}

// Message returns the text meant for the user.
func (e *Error) Message() string { return e.Msg }

// Retryable reports whether offering the user a retry makes sense. Limit and
// setup failures are not retryable without a change on the host side.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindPermission, KindDevice, KindTransport:
		return true
	}
	return false
}

// KindOf extracts the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserMessage returns the user-facing text of err. Unclassified errors fall
// back to err.Error().
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}

func defaultMessage(kind ErrorKind) string {
	switch kind {
	case KindPermission:
		return ErrPermission.Msg
	case KindDevice:
		return ErrDevice.Msg
	case KindSetup:
		return ErrSetup.Msg
	case KindTransport:
		return ErrTransport.Msg
	case KindLimit:
		return ErrLimit.Msg
	}
	return "unexpected error"
}
