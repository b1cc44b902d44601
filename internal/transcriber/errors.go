package transcriber

import (
	"errors"
	"fmt"
)

var ErrAlreadyStarted = errors.New("backend already started")

type AudioInitError struct {
	Err error
}

func (e *AudioInitError) Error() string {
	return fmt.Sprintf("microphone unavailable: %v", e.Err)
}

func (e *AudioInitError) Unwrap() error { return e.Err }

type EngineCode int

const (
	EngineOther EngineCode = iota
	EngineTimeout
	EngineNoMatch
	EngineBusy
)

func (c EngineCode) String() string {
	switch c {
	case EngineTimeout:
		return "timeout"
	case EngineNoMatch:
		return "no-match"
	case EngineBusy:
		return "engine-busy"
	default:
		return "engine-error"
	}
}

type EngineError struct {
	Code EngineCode
	Err  error
}

func (e *EngineError) Error() string {
	if e.Err == nil {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Transient reports whether the error is the engine's way of saying it
// heard nothing.
func (e *EngineError) Transient() bool {
	return e.Code == EngineTimeout || e.Code == EngineNoMatch
}

type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "auth failed: " + e.Reason
	}
	return fmt.Sprintf("auth failed: %s: %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

type ChannelError struct {
	Code   int
	Reason string
	Err    error
}

func (e *ChannelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("channel closed (%d): %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("channel failed: %v", e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Reason turns a backend failure into the short message shown to the user.
func Reason(err error) string {
	var (
		authErr    *AuthError
		audioErr   *AudioInitError
		engineErr  *EngineError
		channelErr *ChannelError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &authErr):
		return "auth failed"
	case errors.As(err, &audioErr):
		return "microphone unavailable"
	case errors.As(err, &engineErr):
		return "recognition failed: " + engineErr.Code.String()
	case errors.As(err, &channelErr):
		return "connection lost"
	default:
		return err.Error()
	}
}
