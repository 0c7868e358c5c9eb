package core

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"
)

func newTestCapturer(dev *fakeDevice, rec *sleepRecorder) *NoteCapturer {
	if rec == nil {
		rec = &sleepRecorder{}
	}
	return NewNoteCapturer(dev,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSleep(rec.sleep))
}

func TestCaptureNoteListOrdering(t *testing.T) {
	stream := newFakeStream(100)
	dev := &fakeDevice{stream: stream}
	c := newTestCapturer(dev, nil)
	out := newFakeSender()

	notes := []uint8{60, 62, 64, 65}
	samples, err := c.CaptureNoteList(out, notes)
	if err != nil {
		t.Fatalf("CaptureNoteList: %v", err)
	}
	if len(samples) != len(notes) {
		t.Fatalf("got %d samples, want %d", len(samples), len(notes))
	}
	for i, s := range samples {
		if len(s) != 100 {
			t.Errorf("sample %d: len = %d, want 100", i, len(s))
		}
		for _, v := range s {
			if v != float32(i) {
				t.Fatalf("sample %d holds data from window %v", i, v)
			}
		}
	}

	if dev.builds != 1 {
		t.Errorf("builds = %d, want 1", dev.builds)
	}
	if stream.plays != 4 || stream.pauses != 4 {
		t.Errorf("plays/pauses = %d/%d, want 4/4", stream.plays, stream.pauses)
	}
	if stream.closed != 1 {
		t.Errorf("closed = %d, want 1", stream.closed)
	}
}

func TestCaptureNoteListMessages(t *testing.T) {
	dev := &fakeDevice{stream: newFakeStream(10)}
	c := newTestCapturer(dev, nil)
	s := DefaultSettings()
	s.MIDIChannel = 3
	s.NoteOnVelocity = 100
	s.NoteOffVelocity = 0
	if !c.ApplyConfig(s) {
		t.Fatal("ApplyConfig rejected valid settings")
	}

	out := newFakeSender()
	if _, err := c.CaptureNoteList(out, []uint8{36, 48}); err != nil {
		t.Fatalf("CaptureNoteList: %v", err)
	}

	want := [][]byte{
		{0x93, 36, 100}, {0x83, 36, 0},
		{0x93, 48, 100}, {0x83, 48, 0},
	}
	if len(out.sent) != len(want) {
		t.Fatalf("sent %d messages, want %d", len(out.sent), len(want))
	}
	for i := range want {
		if !bytes.Equal(out.sent[i], want[i]) {
			t.Errorf("message %d = % x, want % x", i, out.sent[i], want[i])
		}
	}
}

func TestCaptureNoteListEmpty(t *testing.T) {
	dev := &fakeDevice{}
	c := newTestCapturer(dev, nil)
	out := newFakeSender()

	samples, err := c.CaptureNoteList(out, nil)
	if err != nil {
		t.Fatalf("CaptureNoteList: %v", err)
	}
	if samples == nil || len(samples) != 0 {
		t.Errorf("samples = %v, want empty non-nil", samples)
	}
	if dev.builds != 0 || len(out.sent) != 0 {
		t.Errorf("device or output touched: builds=%d sent=%d", dev.builds, len(out.sent))
	}
}

func TestCaptureNotesEmptyRange(t *testing.T) {
	dev := &fakeDevice{}
	c := newTestCapturer(dev, nil)
	s := DefaultSettings()
	s.FirstNote, s.LastNote = 80, 70
	c.ApplyConfig(s)

	samples, err := c.CaptureNotes(newFakeSender())
	if err != nil {
		t.Fatalf("CaptureNotes: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("got %d samples, want 0", len(samples))
	}
	if dev.builds != 0 {
		t.Errorf("builds = %d, want 0", dev.builds)
	}
}

func TestCaptureNotesDefaultRange(t *testing.T) {
	stream := newFakeStream(8)
	c := newTestCapturer(&fakeDevice{stream: stream}, nil)
	out := newFakeSender()

	samples, err := c.CaptureNotes(out)
	if err != nil {
		t.Fatalf("CaptureNotes: %v", err)
	}
	want := []uint8{21, 33, 45, 57, 69, 81, 93, 105, 108}
	if len(samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(samples), len(want))
	}
	for i, n := range want {
		if out.sent[2*i][1] != n {
			t.Errorf("note %d = %d, want %d", i, out.sent[2*i][1], n)
		}
	}
}

func TestCaptureNoteCap(t *testing.T) {
	stream := newFakeStream(10000)
	c := newTestCapturer(&fakeDevice{stream: stream}, nil)

	samples, err := c.CaptureNoteList(newFakeSender(), []uint8{60, 61, 62})
	if err != nil {
		t.Fatalf("CaptureNoteList: %v", err)
	}
	limit := c.Settings().NumSamples()
	if limit != 2205 {
		t.Fatalf("NumSamples = %d, want 2205", limit)
	}
	for i, s := range samples {
		if len(s) != limit {
			t.Errorf("sample %d: len = %d, want %d", i, len(s), limit)
		}
	}
}

func TestCaptureNoteListStreamErrorAborts(t *testing.T) {
	notes := []uint8{40, 41, 42, 43, 44}

	for _, errAt := range []int{1, 2, 4} {
		stream := newFakeStream(50)
		stream.errOnPlay = errAt
		dev := &fakeDevice{stream: stream}
		c := newTestCapturer(dev, nil)
		out := newFakeSender()

		samples, err := c.CaptureNoteList(out, notes)
		if samples != nil {
			t.Errorf("error at %d: samples = %v, want nil", errAt, samples)
		}

		var ce *CaptureError
		if !errors.As(err, &ce) {
			t.Fatalf("error at %d: err = %v, want *CaptureError", errAt, err)
		}
		if ce.Kind != KindStream || ce.Note != notes[errAt] {
			t.Errorf("error at %d: got kind %v note %d, want %v note %d", errAt, ce.Kind, ce.Note, KindStream, notes[errAt])
		}
		if !errors.Is(err, ErrStream) || !errors.Is(err, stream.streamErr) {
			t.Errorf("error at %d: errors.Is does not match sentinel and cause: %v", errAt, err)
		}
		if stream.plays != errAt+1 {
			t.Errorf("error at %d: plays = %d, want %d", errAt, stream.plays, errAt+1)
		}
		if len(out.sent) != 2*(errAt+1) {
			t.Errorf("error at %d: sent %d messages, want %d", errAt, len(out.sent), 2*(errAt+1))
		}
		if stream.closed != 1 {
			t.Errorf("error at %d: closed = %d, want 1", errAt, stream.closed)
		}
	}
}

func TestCaptureNoteListErrorKinds(t *testing.T) {
	buildErr := errors.New("no such device")

	tests := []struct {
		name     string
		setup    func(*fakeDevice, *fakeStream, *fakeSender)
		kind     ErrorKind
		sentinel error
		note     uint8
		sent     int
	}{
		{
			name:     "build",
			setup:    func(d *fakeDevice, _ *fakeStream, _ *fakeSender) { d.buildErr = buildErr },
			kind:     KindBuildStream,
			sentinel: ErrBuildStream,
			sent:     0,
		},
		{
			name:     "play releases note",
			setup:    func(_ *fakeDevice, s *fakeStream, _ *fakeSender) { s.failPlay = 1 },
			kind:     KindPlayStream,
			sentinel: ErrPlayStream,
			note:     11,
			sent:     4,
		},
		{
			name:     "pause",
			setup:    func(_ *fakeDevice, s *fakeStream, _ *fakeSender) { s.failPause = 0 },
			kind:     KindPauseStream,
			sentinel: ErrPauseStream,
			note:     10,
			sent:     2,
		},
		{
			name:     "note on",
			setup:    func(_ *fakeDevice, _ *fakeStream, o *fakeSender) { o.failAt = 2 },
			kind:     KindMIDISend,
			sentinel: ErrMIDISend,
			note:     11,
			sent:     3,
		},
		{
			name:     "note off",
			setup:    func(_ *fakeDevice, _ *fakeStream, o *fakeSender) { o.failAt = 1 },
			kind:     KindMIDISend,
			sentinel: ErrMIDISend,
			note:     10,
			sent:     2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := newFakeStream(16)
			dev := &fakeDevice{stream: stream}
			out := newFakeSender()
			tt.setup(dev, stream, out)

			c := newTestCapturer(dev, nil)
			samples, err := c.CaptureNoteList(out, []uint8{10, 11, 12})
			if samples != nil {
				t.Errorf("samples = %v, want nil", samples)
			}

			var ce *CaptureError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *CaptureError", err)
			}
			if ce.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", ce.Kind, tt.kind)
			}
			if ce.Note != tt.note {
				t.Errorf("note = %d, want %d", ce.Note, tt.note)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.sentinel)
			}
			if len(out.sent) != tt.sent {
				t.Errorf("sent %d messages, want %d", len(out.sent), tt.sent)
			}
		})
	}
}

func TestCaptureNoteListPlayFailureSendsNoteOff(t *testing.T) {
	stream := newFakeStream(16)
	stream.failPlay = 0
	out := newFakeSender()
	c := newTestCapturer(&fakeDevice{stream: stream}, nil)

	if _, err := c.CaptureNoteList(out, []uint8{70}); !errors.Is(err, stream.playErr) {
		t.Fatalf("err = %v, want play error", err)
	}
	want := [][]byte{{0x91, 70, 64}, {0x81, 70, 64}}
	if !reflect.DeepEqual(out.sent, want) {
		t.Errorf("sent = %v, want %v", out.sent, want)
	}
}

func TestCaptureNoteListTrailingGap(t *testing.T) {
	for _, trailing := range []bool{true, false} {
		rec := &sleepRecorder{}
		c := newTestCapturer(&fakeDevice{stream: newFakeStream(4)}, rec)
		s := DefaultSettings()
		s.TimeOn = 30 * time.Millisecond
		s.TimeRelease = 40 * time.Millisecond
		s.TimeBetween = 250 * time.Millisecond
		s.TrailingGap = trailing
		c.ApplyConfig(s)

		if _, err := c.CaptureNoteList(newFakeSender(), []uint8{60, 72}); err != nil {
			t.Fatalf("trailing=%v: %v", trailing, err)
		}

		want := []time.Duration{s.TimeOn, s.TimeRelease, s.TimeBetween, s.TimeOn, s.TimeRelease}
		if trailing {
			want = append(want, s.TimeBetween)
		}
		if !reflect.DeepEqual(rec.sleeps, want) {
			t.Errorf("trailing=%v: sleeps = %v, want %v", trailing, rec.sleeps, want)
		}
	}
}

func TestApplyConfig(t *testing.T) {
	dev := &fakeDevice{stream: newFakeStream(1)}
	c := newTestCapturer(dev, nil)
	before := c.Settings()

	for _, ch := range []int{0, 3, -1} {
		s := DefaultSettings()
		s.Channels = ch
		s.SampleRate = 96000
		if c.ApplyConfig(s) {
			t.Errorf("ApplyConfig accepted %d channels", ch)
		}
		if got := c.Settings(); got != before {
			t.Errorf("settings changed after rejection: %+v", got)
		}
	}

	s := DefaultSettings()
	s.Channels = 2
	if !c.ApplyConfig(s) {
		t.Fatal("ApplyConfig rejected stereo")
	}
	if got := c.Settings().NumSamples(); got != 4410 {
		t.Errorf("NumSamples = %d, want 4410", got)
	}
	if _, err := c.CaptureNote(newFakeSender(), 60); err != nil {
		t.Fatalf("CaptureNote: %v", err)
	}
	if got := dev.configs[0].Channels; got != 2 {
		t.Errorf("stream channels = %d, want 2", got)
	}
}

func TestCaptureNote(t *testing.T) {
	c := newTestCapturer(&fakeDevice{stream: newFakeStream(32)}, nil)
	sample, err := c.CaptureNote(newFakeSender(), 69)
	if err != nil {
		t.Fatalf("CaptureNote: %v", err)
	}
	if len(sample) != 32 {
		t.Errorf("len = %d, want 32", len(sample))
	}
}

func TestCaptureNoteListAsyncDelivery(t *testing.T) {
	stream := newFakeStream(1000)
	stream.async = true
	c := newTestCapturer(&fakeDevice{stream: stream}, nil)

	samples, err := c.CaptureNoteList(newFakeSender(), []uint8{50, 52, 54, 56, 58})
	if err != nil {
		t.Fatalf("CaptureNoteList: %v", err)
	}
	for i, s := range samples {
		if len(s) != 1000 {
			t.Errorf("sample %d: len = %d, want 1000", i, len(s))
		}
		for _, v := range s {
			if v != float32(i) {
				t.Fatalf("sample %d holds data from window %v", i, v)
			}
		}
	}
}

func TestErrorSlotFirstWins(t *testing.T) {
	slot := &errorSlot{}
	first := errors.New("first")
	slot.set(nil)
	slot.set(first)
	slot.set(errors.New("second"))
	if got := slot.get(); got != first {
		t.Errorf("get() = %v, want %v", got, first)
	}
}
