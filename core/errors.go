package core

import (
	"errors"
	"fmt"
)

var (
	ErrBuildStream = errors.New("could not build input stream")
	ErrPlayStream  = errors.New("could not play input stream")
	ErrPauseStream = errors.New("could not pause input stream")
	ErrStream      = errors.New("input stream error")
	ErrMIDISend    = errors.New("could not send midi message")
)

// ErrorKind tells which stage of a capture run failed.
type ErrorKind int

const (
	KindBuildStream ErrorKind = iota + 1
	KindPlayStream
	KindPauseStream
	KindStream
	KindMIDISend
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindBuildStream:
		return ErrBuildStream
	case KindPlayStream:
		return ErrPlayStream
	case KindPauseStream:
		return ErrPauseStream
	case KindStream:
		return ErrStream
	case KindMIDISend:
		return ErrMIDISend
	}
	return nil
}

func (k ErrorKind) String() string {
	switch k {
	case KindBuildStream:
		return "build_stream"
	case KindPlayStream:
		return "play_stream"
	case KindPauseStream:
		return "pause_stream"
	case KindStream:
		return "stream"
	case KindMIDISend:
		return "midi_send"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// CaptureError is returned by every failed capture run. errors.Is matches
// both the sentinel for Kind and the underlying cause.
type CaptureError struct {
	Kind ErrorKind
	// Note is the note being captured when the run failed. It is not set for
	// KindBuildStream.
	Note uint8
	Err  error
}

func (e *CaptureError) Error() string {
	msg := "capture failed"
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Kind != KindBuildStream {
		msg = fmt.Sprintf("%s (note %d)", msg, e.Note)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CaptureError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
