// pkg/interfaces/transport.go
package interfaces

import (
	"errors"
)

var (
	ErrConnectionFailed = errors.New("connection failed")
	ErrNotConnected     = errors.New("output not connected")
)

// MessageSender accepts one raw MIDI message per call. Implementations do not
// buffer: a nil error means the message was handed to the transport.
type MessageSender interface {
	Send(msg []byte) error
}

// Output is an open MIDI output connection.
type Output interface {
	MessageSender
	Close() error
	Name() string
}
