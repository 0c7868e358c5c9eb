package core

import (
	"math"
	"time"

	"github.com/lisuiheng/multisample-go/audio"
)

// captureMargin is added to every capture window when sizing the buffer.
const captureMargin = 10 * time.Millisecond

// NoteSample holds the interleaved samples captured for one note.
type NoteSample = []float32

// CaptureSettings controls timing, stream format, trigger messages and the
// note range of a capture run.
type CaptureSettings struct {
	TimeOn      time.Duration // note-on to note-off
	TimeRelease time.Duration // note-off to pause
	TimeBetween time.Duration // gap before the next note
	// TrailingGap also sleeps TimeBetween after the last note of a run.
	TrailingGap bool

	Channels     int // 1 (mono) or 2 (stereo)
	SampleRate   int
	BufferFrames int // 0 = device default

	MIDIChannel     uint8
	NoteOnVelocity  uint8
	NoteOffVelocity uint8

	FirstNote   uint8
	LastNote    uint8
	NoteSpacing int
}

// DefaultSettings returns the settings a new NoteCapturer starts with.
func DefaultSettings() CaptureSettings {
	return CaptureSettings{
		TimeOn:          20 * time.Millisecond,
		TimeRelease:     20 * time.Millisecond,
		TimeBetween:     100 * time.Millisecond,
		TrailingGap:     true,
		Channels:        1,
		SampleRate:      44100,
		MIDIChannel:     1,
		NoteOnVelocity:  64,
		NoteOffVelocity: 64,
		FirstNote:       21,
		LastNote:        108,
		NoteSpacing:     12,
	}
}

// Verify reports whether the settings can be used for capture. Only the
// channel count is checked; sample rate, velocities and the note range are
// taken as given.
func (s CaptureSettings) Verify() bool {
	return s.Channels == 1 || s.Channels == 2
}

// NumSamples returns the maximum number of samples kept per note.
func (s CaptureSettings) NumSamples() int {
	total := s.TimeOn + s.TimeRelease + captureMargin
	return int(math.Round(float64(s.SampleRate*s.Channels) * total.Seconds()))
}

func (s CaptureSettings) StreamConfig() audio.StreamConfig {
	return audio.StreamConfig{
		Channels:     s.Channels,
		SampleRate:   s.SampleRate,
		BufferFrames: s.BufferFrames,
	}
}

// Notes returns every NoteSpacing-th note from FirstNote through LastNote.
// LastNote is always included when the range is not empty.
func (s CaptureSettings) Notes() []uint8 {
	spacing := s.NoteSpacing
	if spacing < 1 {
		spacing = 1
	}

	last := int(s.LastNote)
	var notes []uint8
	for n := int(s.FirstNote); n <= last; n += spacing {
		notes = append(notes, uint8(n))
		if spacing > last-n {
			break
		}
	}
	if len(notes) > 0 && notes[len(notes)-1] != s.LastNote {
		notes = append(notes, s.LastNote)
	}
	return notes
}
