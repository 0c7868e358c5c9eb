// Package rtmidi sends note messages to a MIDI output port through RtMidi.
package rtmidi

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/lisuiheng/multisample-go/pkg/interfaces"
)

// port is the part of drivers.Out the output needs.
type port interface {
	Open() error
	Close() error
	IsOpen() bool
	String() string
	Send(data []byte) error
}

// findPort resolves a port by name, or the first output port when name is
// empty.
var findPort = func(name string) (port, error) {
	if name == "" {
		return midi.OutPort(0)
	}
	return midi.FindOutPort(name)
}

// Output is an open MIDI output port.
type Output struct {
	mu   sync.Mutex
	port port
	name string
}

var _ interfaces.Output = (*Output)(nil)

// Open opens the output port whose name contains name.
func Open(name string) (*Output, error) {
	p, err := findPort(name)
	if err != nil {
		return nil, fmt.Errorf("%w: can't find output %q: %v", interfaces.ErrConnectionFailed, name, err)
	}
	if err := p.Open(); err != nil {
		return nil, fmt.Errorf("%w: can't open output %q: %v", interfaces.ErrConnectionFailed, p.String(), err)
	}
	return &Output{port: p, name: p.String()}, nil
}

func (o *Output) Send(msg []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.port.IsOpen() {
		return interfaces.ErrNotConnected
	}
	if err := o.port.Send(msg); err != nil {
		return fmt.Errorf("failed to send to %s: %w", o.name, err)
	}
	return nil
}

func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.port.IsOpen() {
		return nil
	}
	return o.port.Close()
}

func (o *Output) Name() string {
	return o.name
}

// CloseDriver releases the RtMidi driver. Call it once all outputs are closed.
func CloseDriver() {
	midi.CloseDriver()
}
