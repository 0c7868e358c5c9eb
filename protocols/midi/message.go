// Package midi builds the raw channel voice messages used to trigger notes.
package midi

// Status bytes for channel voice messages. The low nibble carries the channel.
const (
	StatusNoteOff byte = 0x80
	StatusNoteOn  byte = 0x90

	ChannelMask byte = 0x0f
)

// Message is a three byte channel voice message.
type Message [3]byte

// NoteOn returns a Note On message. Only the low four bits of channel are used.
func NoteOn(channel, note, velocity uint8) Message {
	return Message{StatusNoteOn | (channel & ChannelMask), note, velocity}
}

// NoteOff returns a Note Off message. Only the low four bits of channel are used.
func NoteOff(channel, note, velocity uint8) Message {
	return Message{StatusNoteOff | (channel & ChannelMask), note, velocity}
}

// Bytes returns the message as a slice for sending.
func (m Message) Bytes() []byte {
	return m[:]
}

func (m Message) Channel() uint8 {
	return m[0] & ChannelMask
}

func (m Message) Status() byte {
	return m[0] &^ ChannelMask
}
