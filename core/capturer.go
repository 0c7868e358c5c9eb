package core

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lisuiheng/multisample-go/audio"
	"github.com/lisuiheng/multisample-go/pkg/interfaces"
	"github.com/lisuiheng/multisample-go/protocols/midi"
)

// NoteCapturer triggers notes on a MIDI output and records what an input
// device hears for each of them. The device is owned by the caller and must
// outlive the capturer.
type NoteCapturer struct {
	device audio.InputDevice

	mu       sync.RWMutex
	settings CaptureSettings

	logger *slog.Logger
	sleep  func(time.Duration)
}

func NewNoteCapturer(device audio.InputDevice, opts ...Option) *NoteCapturer {
	c := &NoteCapturer{
		device:   device,
		settings: DefaultSettings(),
		logger:   slog.Default(),
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "capturer", "device", device.Name())
	return c
}

// ApplyConfig replaces the active settings if they verify and reports whether
// they were applied. Rejected settings leave the previous ones in effect.
// Settings must not be replaced while a capture is running.
func (c *NoteCapturer) ApplyConfig(s CaptureSettings) bool {
	if !s.Verify() {
		c.logger.Debug("settings rejected", "channels", s.Channels)
		return false
	}

	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
	return true
}

func (c *NoteCapturer) Settings() CaptureSettings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// CaptureNotes captures every note derived from the active settings.
func (c *NoteCapturer) CaptureNotes(out interfaces.MessageSender) ([]NoteSample, error) {
	s := c.Settings()
	return c.run(out, s, s.Notes())
}

// CaptureNoteList captures the given notes in order through a single input
// stream. It returns one sample per note, or no samples and a *CaptureError
// if any step fails.
func (c *NoteCapturer) CaptureNoteList(out interfaces.MessageSender, notes []uint8) ([]NoteSample, error) {
	return c.run(out, c.Settings(), notes)
}

func (c *NoteCapturer) CaptureNote(out interfaces.MessageSender, note uint8) (NoteSample, error) {
	samples, err := c.run(out, c.Settings(), []uint8{note})
	if err != nil {
		return nil, err
	}
	return samples[0], nil
}

func (c *NoteCapturer) run(out interfaces.MessageSender, s CaptureSettings, notes []uint8) ([]NoteSample, error) {
	results := make([]NoteSample, 0, len(notes))
	if len(notes) == 0 {
		return results, nil
	}

	log := c.logger.With("run_id", uuid.NewString())
	log.Info("capture started",
		"notes", len(notes),
		"sample_rate", s.SampleRate,
		"channels", s.Channels,
		"max_samples", s.NumSamples())

	buf := audio.NewCaptureBuffer(s.NumSamples())
	slot := &errorSlot{}

	stream, err := c.device.BuildInputStream(s.StreamConfig(),
		func(in []float32) { buf.AppendBounded(in) },
		slot.set)
	if err != nil {
		log.Error("failed to build input stream", "error", err)
		return nil, &CaptureError{Kind: KindBuildStream, Err: err}
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Warn("failed to close input stream", "error", err)
		}
	}()

	start := time.Now()
	for i, note := range notes {
		sample, err := c.captureOne(log, out, stream, buf, slot, s, note)
		if err != nil {
			log.Error("capture aborted", "note", note, "index", i, "error", err)
			return nil, err
		}
		results = append(results, sample)

		if i < len(notes)-1 || s.TrailingGap {
			c.sleep(s.TimeBetween)
		}
	}

	log.Info("capture finished", "notes", len(results), "elapsed", time.Since(start))
	return results, nil
}

func (c *NoteCapturer) captureOne(
	log *slog.Logger,
	out interfaces.MessageSender,
	stream audio.InputStream,
	buf *audio.CaptureBuffer,
	slot *errorSlot,
	s CaptureSettings,
	note uint8,
) (NoteSample, error) {
	fail := func(kind ErrorKind, err error) (NoteSample, error) {
		return nil, &CaptureError{Kind: kind, Note: note, Err: err}
	}

	buf.ClearAndReserve()

	if err := out.Send(midi.NoteOn(s.MIDIChannel, note, s.NoteOnVelocity).Bytes()); err != nil {
		return fail(KindMIDISend, err)
	}
	noteOff := midi.NoteOff(s.MIDIChannel, note, s.NoteOffVelocity).Bytes()

	if err := stream.Play(); err != nil {
		c.releaseNote(log, out, noteOff)
		return fail(KindPlayStream, err)
	}
	c.sleep(s.TimeOn)

	if err := out.Send(noteOff); err != nil {
		return fail(KindMIDISend, err)
	}
	c.sleep(s.TimeRelease)

	if err := stream.Pause(); err != nil {
		return fail(KindPauseStream, err)
	}
	if err := slot.get(); err != nil {
		return fail(KindStream, err)
	}

	sample := buf.SwapOut()

	peak, rms := audio.Levels(sample)
	log.Debug("note captured", "note", note, "samples", len(sample), "peak", peak, "rms", rms)
	if len(sample) > 0 && peak == 0 {
		log.Warn("captured note is silent", "note", note)
	}
	return sample, nil
}

// releaseNote sends a note-off after a failure that left a note sounding.
func (c *NoteCapturer) releaseNote(log *slog.Logger, out interfaces.MessageSender, msg []byte) {
	if err := out.Send(msg); err != nil {
		log.Warn("failed to release note", "error", err)
	}
}

// errorSlot keeps the first error reported by the device callback.
type errorSlot struct {
	mu  sync.Mutex
	err error
}

func (e *errorSlot) set(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err == nil {
		e.err = err
	}
}

func (e *errorSlot) get() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}
